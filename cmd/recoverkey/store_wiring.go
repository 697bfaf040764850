package main

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/rawblock/hitag2-corrattack/internal/cipher"
	"github.com/rawblock/hitag2-corrattack/internal/engine"
	"github.com/rawblock/hitag2-corrattack/internal/store"
)

// connectLedger connects to databaseURL if set, warning and continuing
// without persistence on any failure. It also records the run's starting
// parameters when the connection succeeds.
func connectLedger(ctx context.Context, databaseURL string, params store.RunParams) (ledger *store.Ledger, runID uuid.UUID, cleanup func()) {
	if databaseURL == "" {
		return nil, uuid.Nil, func() {}
	}

	ledger, err := store.Connect(ctx, databaseURL)
	if err != nil {
		log.Printf("Warning: failed to connect to run ledger, continuing without persistence: %v", err)
		return nil, uuid.Nil, func() {}
	}

	if err := ledger.InitSchema(ctx); err != nil {
		log.Printf("Warning: run ledger schema init failed: %v", err)
	}

	id, err := ledger.StartRun(ctx, params)
	if err != nil {
		log.Printf("Warning: failed to record run start: %v", err)
	}

	return ledger, id, ledger.Close
}

// finishLedger records the run's outcome, doing nothing if no ledger is
// connected.
func finishLedger(ctx context.Context, ledger *store.Ledger, runID uuid.UUID, key cipher.Key, err error) {
	if ledger == nil || runID == uuid.Nil {
		return
	}

	var keyPtr *cipher.Key
	outcome := "no_key_found"
	switch {
	case err == nil:
		keyPtr = &key
		outcome = "recovered"
	case isInvalidInput(err):
		outcome = "invalid_input"
	case errors.Is(err, engine.ErrResourceExhausted):
		outcome = "resource_exhausted"
	}

	if ferr := ledger.FinishRun(ctx, runID, keyPtr, outcome); ferr != nil {
		log.Printf("Warning: failed to record run outcome: %v", ferr)
	}
}
