// Package backup exports the whole dataset as one JSON document and restores
// it onto a node holding the same encryption key.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"roxtor/backend/internal/domain"
)

const Version = "1.5.0-ROXTOR"

var (
	ErrKeyMismatch          = errors.New("backup encryption key does not match this node")
	ErrConfirmationRequired = errors.New("import overwrites all current data and must be confirmed")
	ErrInvalidDocument      = errors.New("invalid backup document")
)

type Document struct {
	Products   []domain.Product  `json:"products"`
	Orders     []domain.Order    `json:"orders"`
	Agents     []domain.Agent    `json:"agents"`
	Workshops  []domain.Workshop `json:"workshops"`
	Stores     []domain.Store    `json:"stores,omitempty"`
	Settings   domain.Settings   `json:"settings"`
	ExportDate time.Time         `json:"export_date"`
	KeyCheck   string            `json:"key_check"`
	Version    string            `json:"version"`
}

// Restorer replaces every collection in one step.
type Restorer interface {
	Restore(ctx context.Context, snap domain.Snapshot) error
}

func Export(snap domain.Snapshot, now time.Time) Document {
	snap = snap.Clone()
	return Document{
		Products:   snap.Products,
		Orders:     snap.Orders,
		Agents:     snap.Agents,
		Workshops:  snap.Workshops,
		Stores:     snap.Stores,
		Settings:   snap.Settings,
		ExportDate: now.UTC(),
		KeyCheck:   snap.Settings.EncryptionKey,
		Version:    Version,
	}
}

func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// Import restores doc over current. The key check and the confirmation are
// verified before anything is written. Stores and PIN hashes missing from
// older documents are carried over from current.
func Import(ctx context.Context, r Restorer, doc Document, current domain.Snapshot, confirm bool) (domain.Snapshot, error) {
	if doc.KeyCheck != current.Settings.EncryptionKey {
		return domain.Snapshot{}, ErrKeyMismatch
	}
	if !confirm {
		return domain.Snapshot{}, ErrConfirmationRequired
	}
	if err := validate(doc); err != nil {
		return domain.Snapshot{}, err
	}

	snap := domain.Snapshot{
		Products:  doc.Products,
		Orders:    doc.Orders,
		Agents:    doc.Agents,
		Workshops: doc.Workshops,
		Stores:    doc.Stores,
		Settings:  doc.Settings,
	}
	if len(snap.Stores) == 0 {
		snap.Stores = current.Stores
	}
	if snap.Settings.LoginPINHash == "" {
		snap.Settings.LoginPINHash = current.Settings.LoginPINHash
	}
	if snap.Settings.MasterPINHash == "" {
		snap.Settings.MasterPINHash = current.Settings.MasterPINHash
	}
	if snap.Settings.EncryptionKey == "" {
		snap.Settings.EncryptionKey = current.Settings.EncryptionKey
	}

	if err := r.Restore(ctx, snap); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

func validate(doc Document) error {
	seen := make(map[string]bool, len(doc.Orders))
	for _, o := range doc.Orders {
		if o.ID == "" {
			return fmt.Errorf("%w: order without id", ErrInvalidDocument)
		}
		if seen[o.ID] {
			return fmt.Errorf("%w: duplicate order %s", ErrInvalidDocument, o.ID)
		}
		seen[o.ID] = true
	}
	for _, p := range doc.Products {
		if p.ID == "" {
			return fmt.Errorf("%w: product without id", ErrInvalidDocument)
		}
	}
	return nil
}
