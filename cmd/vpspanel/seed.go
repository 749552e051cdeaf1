package main

import (
	"context"
	"errors"
	"fmt"

	goVPS "github.com/MrEthical07/goVPS"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"
)

// operator is the principal offline commands act as.
var operator = goVPS.Principal{Role: permission.RoleAdmin}

// catalog is the slice of the engine the seeder drives.
type catalog interface {
	CreateAccount(ctx context.Context, p goVPS.Principal, req goVPS.CreateAccountRequest) (*store.Account, error)
	CreateImage(ctx context.Context, p goVPS.Principal, img store.Image) (*store.Image, error)
	CreateHost(ctx context.Context, p goVPS.Principal, h store.Host) (*store.Host, error)
}

type seedOptions struct {
	adminPassword string
	demoUser      bool
	capacity      func(ctx context.Context) (hostCapacity, error)
}

type hostCapacity struct {
	cpus      int
	ramGB     float64
	storageGB int
}

var seedImages = []store.Image{
	{Name: "Ubuntu 22.04 LTS", OSType: "ubuntu", Version: "22.04", Format: store.ImageQCOW2, Description: "Ubuntu Server 22.04 LTS (Jammy Jellyfish)", IsPublic: true},
	{Name: "Debian 12", OSType: "debian", Version: "12", Format: store.ImageQCOW2, Description: "Debian 12 (Bookworm)", IsPublic: true},
}

func newSeedCmd(a *app) *cobra.Command {
	opts := seedOptions{capacity: localCapacity}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin account, the local host and the stock images",
		Long:  "Seed is idempotent: records that already exist are left untouched.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			engine, closeEngine, err := a.buildEngine(ctx, st, false)
			if err != nil {
				return err
			}
			defer closeEngine()

			created, err := seed(ctx, engine, opts)
			if err != nil {
				return err
			}
			for _, name := range created {
				fmt.Fprintln(cmd.OutOrStdout(), "created", name)
			}
			if len(created) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to seed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.adminPassword, "admin-password", "admin123", "password for admin@example.com")
	cmd.Flags().BoolVar(&opts.demoUser, "demo-user", true, "also create user@example.com / user123")
	return cmd
}

// seed creates whatever stock records are missing and names the ones it
// created.
func seed(ctx context.Context, c catalog, opts seedOptions) ([]string, error) {
	var created []string

	accounts := []goVPS.CreateAccountRequest{{
		Email: "admin@example.com", Username: "admin", Password: opts.adminPassword,
		FullName: "Administrator", Role: permission.RoleAdmin,
	}}
	if opts.demoUser {
		accounts = append(accounts, goVPS.CreateAccountRequest{
			Email: "user@example.com", Username: "user", Password: "user123",
			FullName: "Test User", Role: permission.RoleUser,
		})
	}
	for _, req := range accounts {
		_, err := c.CreateAccount(ctx, operator, req)
		switch {
		case err == nil:
			created = append(created, "account "+req.Email)
		case errors.Is(err, goVPS.ErrEmailTaken), errors.Is(err, goVPS.ErrUsernameTaken):
		default:
			return created, fmt.Errorf("seed account %s: %w", req.Email, err)
		}
	}

	capacity, err := opts.capacity(ctx)
	if err != nil {
		return created, fmt.Errorf("read host capacity: %w", err)
	}
	_, err = c.CreateHost(ctx, operator, store.Host{
		Name:           "localhost",
		Address:        "127.0.0.1",
		TotalCPU:       capacity.cpus,
		TotalRAMGB:     capacity.ramGB,
		TotalStorageGB: capacity.storageGB,
		Status:         store.HostOnline,
	})
	switch {
	case err == nil:
		created = append(created, "host localhost")
	case errors.Is(err, goVPS.ErrConflict):
	default:
		return created, fmt.Errorf("seed host: %w", err)
	}

	for _, img := range seedImages {
		_, err := c.CreateImage(ctx, operator, img)
		switch {
		case err == nil:
			created = append(created, "image "+img.Name)
		case errors.Is(err, goVPS.ErrConflict):
		default:
			return created, fmt.Errorf("seed image %s: %w", img.Name, err)
		}
	}
	return created, nil
}

const gib = 1 << 30

// localCapacity reads the capacity of the machine the panel runs on.
func localCapacity(ctx context.Context) (hostCapacity, error) {
	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return hostCapacity{}, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return hostCapacity{}, err
	}
	du, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return hostCapacity{}, err
	}
	return hostCapacity{
		cpus:      cpus,
		ramGB:     float64(vm.Total) / gib,
		storageGB: int(du.Total / gib),
	}, nil
}
