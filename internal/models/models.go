// Package models holds the records the console exchanges with the backend.
// Field names follow the backend's JSON contract after id normalization:
// every record carries "id" on the client side.
package models

import "time"

type UserProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Company        string `json:"company"`
	Role           string `json:"role"`
	Avatar         string `json:"avatar,omitempty"`
	SessionTimeout string `json:"sessionTimeout,omitempty"`
}

type ProjectStatus string

const (
	ProjectDevelopment ProjectStatus = "development"
	ProjectTesting     ProjectStatus = "testing"
	ProjectDeployed    ProjectStatus = "deployed"
)

type DocumentRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type Project struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Model        string        `json:"model"`
	Temperature  float64       `json:"temperature"`
	SystemPrompt string        `json:"systemPrompt"`
	Documents    []DocumentRef `json:"documents"`
	Status       ProjectStatus `json:"status"`
	Version      string        `json:"version"`
	APICalls     int64         `json:"apiCalls"`
	CreatedAt    time.Time     `json:"createdAt"`
}

func (p Project) GetID() string { return p.ID }

// ProjectInput is the body of create and update calls. Empty fields are
// left out so a partial update (e.g. a status change) touches nothing else.
// Description and SystemPrompt are pointers so an update can clear them.
type ProjectInput struct {
	Name         string        `json:"name,omitempty"`
	Description  *string       `json:"description,omitempty"`
	Model        string        `json:"model,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty"`
	SystemPrompt *string       `json:"systemPrompt,omitempty"`
	DocumentIDs  []string      `json:"documents,omitempty"`
	Status       ProjectStatus `json:"status,omitempty"`
}

type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentError      DocumentStatus = "error"
)

// DataSource is a knowledge-base document.
type DataSource struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Format        string         `json:"format"`
	Size          int64          `json:"size"`
	Status        DocumentStatus `json:"status"`
	UploadedAt    time.Time      `json:"uploadedAt"`
	RAGDocumentID string         `json:"ragDocumentId"`
}

func (d DataSource) GetID() string { return d.ID }

type UploadResponse struct {
	Message  string     `json:"message,omitempty"`
	Document DataSource `json:"document"`
}

// APIKey never carries the secret; only the prefix and last four characters
// survive creation.
type APIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	KeyPrefix string    `json:"keyPrefix"`
	LastFour  string    `json:"lastFour"`
	ProjectID string    `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (k APIKey) GetID() string { return k.ID }

// Masked renders the key the way the settings screen shows it.
func (k APIKey) Masked() string {
	return k.KeyPrefix + "..." + k.LastFour
}

type APIKeyRequest struct {
	Name      string `json:"name"`
	ProjectID string `json:"projectId"`
}

// GeneratedAPIKey is returned once, by the create call. Key is the full secret.
type GeneratedAPIKey struct {
	APIKey
	Key string `json:"key"`
}

type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
)

type ChatMessage struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

func (m ChatMessage) GetID() string { return m.ID }

type HistoryEntry struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

type ChatRequest struct {
	Question     string         `json:"question"`
	DocumentIDs  []string       `json:"documentIds"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	History      []HistoryEntry `json:"history,omitempty"`
	ProjectID    string         `json:"projectId,omitempty"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupForm struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Company  string `json:"company"`
	Role     string `json:"role"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

type ProfileUpdate struct {
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Company        string `json:"company,omitempty"`
	Role           string `json:"role,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
	SessionTimeout string `json:"sessionTimeout,omitempty"`
}

type AnalyticsSummary struct {
	TotalProjects    int   `json:"totalProjects"`
	DeployedProjects int   `json:"deployedProjects"`
	TotalDocuments   int   `json:"totalDocuments"`
	TotalAPICalls    int64 `json:"totalApiCalls"`
}

type UsagePoint struct {
	Date  string `json:"date"`
	Calls int64  `json:"calls"`
}

type ProjectUsage struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Calls     int64  `json:"calls"`
}

type Analytics struct {
	Range      string           `json:"range"`
	Summary    AnalyticsSummary `json:"summary"`
	TimeSeries []UsagePoint     `json:"timeSeries"`
	Projects   []ProjectUsage   `json:"projects"`
}

type NotificationLevel string

const (
	NotifyInfo    NotificationLevel = "info"
	NotifySuccess NotificationLevel = "success"
	NotifyError   NotificationLevel = "error"
)

// Notification is a transient toast.
type Notification struct {
	ID        string            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (n Notification) GetID() string { return n.ID }
