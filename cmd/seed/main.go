// Command seed loads the canonical role set and, when ADMIN_EMAIL and
// ADMIN_PASSWORD are set, a super-admin account. Development and first-run
// provisioning only; it is never part of the serving path.
package main

import (
	"context"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/fuelgrid/gridauth/internal/config"
	"github.com/fuelgrid/gridauth/internal/credentials"
	"github.com/fuelgrid/gridauth/internal/models"
	"github.com/fuelgrid/gridauth/internal/roles"
	"github.com/fuelgrid/gridauth/internal/storage"
)

var seedRoles = []string{
	roles.CodeSuperAdmin,
	roles.CodeNetworkAdmin,
	roles.CodePointManager,
	roles.CodeManager,
	roles.CodeOperator,
	roles.CodeBTOManager,
	roles.CodeDriver,
	roles.CodeUser,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := storage.NewPostgresStorage(storage.BuildDSN(cfg.Database))
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	ctx := context.Background()

	for _, code := range seedRoles {
		if _, err := store.GetRoleByCode(ctx, code); err == nil {
			continue
		}
		role := &models.Role{
			Code: code,
			Name: roles.DisplayName(code),
		}
		if err := store.CreateRole(ctx, role); err != nil {
			log.Fatalf("Failed to create role %s: %v", code, err)
		}
		log.Printf("Created role %s (%s)", code, role.Name)
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Println("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin user")
		return
	}

	if _, err := store.GetUserByEmail(ctx, email); err == nil {
		log.Printf("Admin user %s already exists", email)
		return
	}

	hash, err := credentials.Hash(password, cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	admin := &models.User{
		ID:           uuid.NewString(),
		TenantID:     os.Getenv("ADMIN_TENANT_ID"),
		Email:        email,
		DisplayName:  "Administrator",
		Status:       models.StatusActive,
		PasswordHash: hash,
	}
	if err := store.CreateUser(ctx, admin); err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	superAdmin, err := store.GetRoleByCode(ctx, roles.CodeSuperAdmin)
	if err != nil {
		log.Fatalf("Failed to load super_admin role: %v", err)
	}
	if err := store.AssignRole(ctx, admin.ID, superAdmin.ID, 0); err != nil {
		log.Fatalf("Failed to assign super_admin role: %v", err)
	}

	log.Printf("Created admin user %s", email)
}
