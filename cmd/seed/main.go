package main

import (
	"context"
	"time"

	"go-helpdesk/internal/config"
	"go-helpdesk/internal/database"
	"go-helpdesk/internal/features/ticket"
	"go-helpdesk/internal/logger"
	"go-helpdesk/internal/store"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

type seedUser struct {
	id         string
	name       string
	email      string
	department string
	location   string
	role       ticket.Role
}

var users = []seedUser{
	{"seed-admin", "Rita Admin", "rita@helpdesk.local", "IT", "IT Server", ticket.RoleSuperAdmin},
	{"seed-engineer", "Evan Engineer", "evan@helpdesk.local", "IT", "IT Server", ticket.RoleITEngineer},
	{"seed-support", "Sam Support", "sam@helpdesk.local", "IT", "IT Office", ticket.RoleITTechSupport},
	{"seed-user-1", "Uma User", "uma@helpdesk.local", "Accounts", "Accounts Office", ticket.RoleUser},
	{"seed-user-2", "Omar User", "omar@helpdesk.local", "HR", "HR Office", ticket.RoleUser},
}

type seedTicket struct {
	owner    int
	subject  string
	message  string
	priority ticket.Priority
	device   string
}

var tickets = []seedTicket{
	{3, "Laptop will not boot", "Black screen on power up since this morning.", ticket.PriorityHigh, "Laptop"},
	{3, "Printer out of toner", "Second floor printer shows toner warning.", ticket.PriorityLow, "Printer"},
	{4, "VPN drops every hour", "Connection resets roughly on the hour.", ticket.PriorityMedium, "Desktop"},
}

// Seed writes a deterministic development dataset and shuts the app down.
func Seed(lc fx.Lifecycle, st store.Store, zlog *zap.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						zlog.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				zlog.Info("Seeding helpdesk data")
				if err := run(ctx, st, zlog); err != nil {
					zlog.Error("Seeding failed", zap.Error(err))
					return
				}
				zlog.Info("Seeding complete")
			}()
			return nil
		},
	})
}

func run(ctx context.Context, st store.Store, zlog *zap.Logger) error {
	ids := make([]string, len(users))
	for i, u := range users {
		existing, err := st.RunQuery(ctx, store.Query{
			Collection: ticket.ProfileCollection,
			Filters:    []store.Filter{store.Eq("email", u.email)},
			Limit:      1,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			ids[i] = existing[0].ID()
			zlog.Info("User exists, skipping", zap.String("email", u.email))
			continue
		}
		id, err := st.Create(ctx, ticket.ProfileCollection, store.Document{
			"name":       u.name,
			"email":      u.email,
			"department": u.department,
			"location":   u.location,
			"role":       string(u.role),
		})
		if err != nil {
			return err
		}
		ids[i] = id
	}

	now := time.Now()
	for n, t := range tickets {
		owner := users[t.owner]
		createdAt := now.Add(-time.Duration(len(tickets)-n) * time.Hour)
		existing, err := st.RunQuery(ctx, store.Query{
			Collection: ticket.Collection,
			Filters:    []store.Filter{store.Eq("subject", t.subject)},
			Limit:      1,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			zlog.Info("Ticket exists, skipping", zap.String("subject", t.subject))
			continue
		}
		doc := ticket.ToDocument(ticket.Ticket{
			Subject:         t.subject,
			Message:         t.message,
			Status:          ticket.StatusOpen,
			Priority:        t.priority,
			OwnerUserID:     ids[t.owner],
			OwnerName:       owner.name,
			OwnerEmail:      owner.email,
			OwnerDepartment: owner.department,
			Location:        owner.location,
			Device:          t.device,
			CreatedAt:       createdAt,
			LastUpdatedAt:   createdAt,
			Updates: []ticket.UpdateEntry{{
				Status:    ticket.StatusOpen,
				Notes:     "Ticket created",
				Timestamp: createdAt,
				UpdatedBy: owner.name,
			}},
		})
		id, err := st.Create(ctx, ticket.Collection, doc)
		if err != nil {
			return err
		}
		seeded := ticket.Ticket{ID: id, OwnerDepartment: owner.department, Location: owner.location, Device: t.device}
		code := ticket.CodeFor(seeded, "", createdAt)
		if err := st.Update(ctx, ticket.Collection, id, store.Document{"code": code}); err != nil {
			return err
		}
		zlog.Info("Seeded ticket", zap.String("code", code), zap.String("subject", t.subject))
	}
	return nil
}

func main() {
	fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			store.NewMongoStore,
		),
		fx.WithLogger(func(zlog *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zlog}
		}),
		fx.Invoke(Seed),
	).Run()
}
