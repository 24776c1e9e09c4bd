package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateJob is returned by EnqueueJob when a job with the same
// dedup key has already been queued.
var ErrDuplicateJob = errors.New("duplicate job")

// Document is one ingested knowledge source for a clinic. Rows are immutable;
// re-ingesting the same text creates a new document.
type Document struct {
	ID        string
	ClinicID  string
	Title     string
	SourceURI string
	CreatedAt time.Time
}

// Chunk is one embedded segment of a document. The embedding is stored as a
// little-endian float32 blob (see retrieval.EncodeVector) together with the
// model that produced it, so vectors from different models are never compared.
type Chunk struct {
	ID           string
	DocumentID   string
	ClinicID     string
	Content      string
	Embedding    []byte
	Model        string
	MetadataJSON string
	CreatedAt    time.Time
}

type Contact struct {
	ID        string
	ClinicID  string
	Name      string
	Phone     string
	CreatedAt time.Time
}

// Conversation channel values.
const (
	ChannelSim      = "sim"
	ChannelWhatsApp = "whatsapp"
)

type Conversation struct {
	ID        string
	ClinicID  string
	ContactID string
	Channel   string
	CreatedAt time.Time
}

// Message direction values.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message is one turn of a conversation. The messages table is append-only.
type Message struct {
	ID             string
	ConversationID string
	ClinicID       string
	Direction      string
	Sender         string
	Text           string
	Intent         string
	ToolCalled     string
	PayloadJSON    string
	CreatedAt      time.Time
}

type Job struct {
	ID          string
	Type        string
	DedupKey    string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
