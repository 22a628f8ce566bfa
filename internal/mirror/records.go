// Package mirror implements the local mirror store: typed, indexed SQLite
// collections that cache server entities for offline reads, keyed by the
// server-assigned id and upserted on every fetch or edit.
//
// Unlike the vault and the mutation queue, storage failures here PROPAGATE:
// a caller must know that its read or write did not land.
package mirror

import (
	"encoding/json"
	"time"
)

// Proyecto mirrors a project/event record. Tipo carries the server's raw
// free-text type (or a foreign-key id); CategoryKey is the locally
// normalized classification, resolved once at ingestion.
type Proyecto struct {
	ID              string          `json:"id"`
	Nombre          string          `json:"nombre"`
	Tipo            string          `json:"tipo,omitempty"`
	CategoryKey     string          `json:"category_key,omitempty"`
	RegionID        string          `json:"region_id,omitempty"`
	ComunidadID     string          `json:"comunidad_id,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	SavedAt         time.Time       `json:"saved_at"`
	IsOffline       bool            `json:"is_offline"`
	ModifiedOffline bool            `json:"modified_offline"`
}

type Comunidad struct {
	ID              string          `json:"id"`
	Nombre          string          `json:"nombre"`
	RegionID        string          `json:"region_id,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	SavedAt         time.Time       `json:"saved_at"`
	IsOffline       bool            `json:"is_offline"`
	ModifiedOffline bool            `json:"modified_offline"`
}

type Region struct {
	ID        string          `json:"id"`
	Nombre    string          `json:"nombre"`
	Data      json.RawMessage `json:"data,omitempty"`
	SavedAt   time.Time       `json:"saved_at"`
	IsOffline bool            `json:"is_offline"`
}

type Beneficiario struct {
	ID              string          `json:"id"`
	Nombre          string          `json:"nombre"`
	ComunidadID     string          `json:"comunidad_id,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	SavedAt         time.Time       `json:"saved_at"`
	IsOffline       bool            `json:"is_offline"`
	ModifiedOffline bool            `json:"modified_offline"`
}

// TipoActividad mirrors the activity-type catalog; CategoryKey is resolved
// from the name so projects referencing a type id can be classified.
type TipoActividad struct {
	ID          string          `json:"id"`
	Nombre      string          `json:"nombre"`
	CategoryKey string          `json:"category_key,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	SavedAt     time.Time       `json:"saved_at"`
	IsOffline   bool            `json:"is_offline"`
}

type Personal struct {
	ID        string          `json:"id"`
	Nombre    string          `json:"nombre"`
	Cargo     string          `json:"cargo,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	SavedAt   time.Time       `json:"saved_at"`
	IsOffline bool            `json:"is_offline"`
}

type Colaborador struct {
	ID        string          `json:"id"`
	Nombre    string          `json:"nombre"`
	Data      json.RawMessage `json:"data,omitempty"`
	SavedAt   time.Time       `json:"saved_at"`
	IsOffline bool            `json:"is_offline"`
}
