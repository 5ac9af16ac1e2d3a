package main

import (
	"context" // Store calls
	"errors"  // Error matching
	"time"    // Sample dates

	"exchange_api/internal/config" // Custom import path (Config)
	"exchange_api/internal/db"     // Custom import path (Database)
	"exchange_api/internal/domain" // Domain models
	"exchange_api/internal/store"  // Persistence store

	"github.com/shopspring/decimal" // Money arithmetic
	"github.com/sirupsen/logrus"    // Logging
)

// madToRWF is the fixed demo rate shown by the front end
var madToRWF = decimal.RequireFromString("120.5")

type sample struct {
	from, to string
	amount   int64
	date     string
}

// Sample history displayed by the front end's transaction list
var samples = []sample{
	{"MAD", "RWF", 1000, "2026-02-16T10:30:00Z"},
	{"RWF", "MAD", 24000, "2026-02-15T15:20:00Z"},
	{"MAD", "RWF", 500, "2026-02-14T09:15:00Z"},
	{"RWF", "MAD", 60000, "2026-02-13T16:45:00Z"},
	{"MAD", "RWF", 2500, "2026-02-12T11:00:00Z"},
	{"MAD", "RWF", 750, "2026-02-11T14:30:00Z"},
	{"RWF", "MAD", 36000, "2026-02-10T10:15:00Z"},
	{"MAD", "RWF", 1500, "2026-02-09T13:20:00Z"},
}

// Main entry point for seeding demo data
func main() {
	cfg := config.LoadConfig()

	gdb, err := db.Open(cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}
	st := store.New(gdb)
	ctx := context.Background()

	user, err := st.FirstUser(ctx)
	if errors.Is(err, store.ErrNotFound) {
		user = &domain.User{
			Name:        "Demo User",
			Email:       "demo@example.com",
			MemberSince: domain.FormatMemberSince(time.Now()),
		}
		err = st.InsertUser(ctx, user)
	}
	if err != nil {
		logrus.Fatalf("failed to prepare demo user: %v", err)
	}

	existing, err := st.ListTransactionsByUser(ctx, user.ID)
	if err != nil {
		logrus.Fatalf("failed to list transactions: %v", err)
	}
	if len(existing) > 0 {
		logrus.WithField("user_id", user.ID).Info("Transactions already seeded")
		return
	}

	for _, s := range samples {
		tx, err := buildTransaction(user.ID, s)
		if err != nil {
			logrus.Fatalf("bad sample %+v: %v", s, err)
		}
		if err := st.InsertTransaction(ctx, tx); err != nil {
			logrus.Fatalf("failed to insert transaction: %v", err)
		}
	}
	logrus.WithFields(logrus.Fields{
		"user_id":      user.ID,
		"transactions": len(samples),
	}).Info("Seed completed.")
}

// buildTransaction converts at the fixed rate: MAD is multiplied, RWF divided
func buildTransaction(userID uint, s sample) (*domain.Transaction, error) {
	date, err := time.Parse(time.RFC3339, s.date)
	if err != nil {
		return nil, err
	}
	amount := decimal.NewFromInt(s.amount)
	rate := madToRWF
	converted := amount.Mul(madToRWF)
	if s.from == "RWF" {
		rate = decimal.NewFromInt(1).DivRound(madToRWF, 6)
		converted = amount.DivRound(madToRWF, 2)
	}
	return &domain.Transaction{
		UserID:          userID,
		FromCurrency:    s.from,
		ToCurrency:      s.to,
		Amount:          amount,
		ConvertedAmount: converted.Round(2),
		ExchangeRate:    rate,
		Date:            date,
		Status:          domain.StatusCompleted,
	}, nil
}
