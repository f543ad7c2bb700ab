package store

import "time"

// Records are serialized the way the dashboard backend has always exposed
// them: the primary key is "_id".

type User struct {
	ID             string    `json:"_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Company        string    `json:"company"`
	Role           string    `json:"role"`
	Avatar         string    `json:"avatar,omitempty"`
	SessionTimeout string    `json:"sessionTimeout,omitempty"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"createdAt"`
}

type DocumentRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type Project struct {
	ID           string        `json:"_id"`
	UserID       string        `json:"-"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Model        string        `json:"model"`
	Temperature  float64       `json:"temperature"`
	SystemPrompt string        `json:"systemPrompt"`
	Documents    []DocumentRef `json:"documents"`
	Status       string        `json:"status"`
	Version      string        `json:"version"`
	APICalls     int64         `json:"apiCalls"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

const (
	DocumentProcessing = "processing"
	DocumentReady      = "ready"
	DocumentError      = "error"
)

type DataSource struct {
	ID            string    `json:"_id"`
	UserID        string    `json:"-"`
	Name          string    `json:"name"`
	Format        string    `json:"format"`
	Size          int64     `json:"size"`
	Status        string    `json:"status"`
	RAGDocumentID string    `json:"ragDocumentId"`
	Error         string    `json:"error,omitempty"`
	UploadedAt    time.Time `json:"uploadedAt"`
}

type DocumentChunk struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"documentId"`
	Ordinal    int       `json:"ordinal"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"` // Don't marshal to JSON response, internal
}

type APIKey struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	KeyPrefix string    `json:"keyPrefix"`
	LastFour  string    `json:"lastFour"`
	KeyHash   string    `json:"-"`
	ProjectID string    `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
}

type UsageEvent struct {
	UserID    string
	ProjectID string
	Kind      string
	CreatedAt time.Time
}
