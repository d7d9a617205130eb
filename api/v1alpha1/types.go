package v1alpha1

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

type RecordStatus string

const (
	RecordStatusPending    RecordStatus = "pending"
	RecordStatusUploading  RecordStatus = "uploading"
	RecordStatusProcessing RecordStatus = "processing"
	RecordStatusProcessed  RecordStatus = "processed"
	RecordStatusFailed     RecordStatus = "failed"
)

// Record is a transcription or a document.
type Record struct {
	Id           string         `json:"id"`
	Filename     string         `json:"filename"`
	Locator      string         `json:"locator,omitempty"`
	FileSize     int64          `json:"fileSize"`
	MimeType     string         `json:"mimeType"`
	Notes        string         `json:"notes,omitempty"`
	Status       RecordStatus   `json:"status"`
	Content      string         `json:"content,omitempty"`
	EnrichedData map[string]any `json:"enrichedData"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type RecordList []Record

// RecordCreate registers a file the client already stored.
type RecordCreate struct {
	Filename string `json:"filename" validate:"required,filename"`
	Locator  string `json:"locator" validate:"required,url"`
	FileSize int64  `json:"fileSize" validate:"gt=0"`
	MimeType string `json:"mimeType" validate:"required,mime_type"`
	Notes    string `json:"notes,omitempty"`
}

type RecordCreated struct {
	Id      string `json:"id"`
	Locator string `json:"locator"`
}

// PresignRequest asks for client-direct upload credentials.
type PresignRequest struct {
	Filename string `json:"filename" validate:"required,filename"`
	FileSize int64  `json:"fileSize" validate:"gt=0"`
	MimeType string `json:"mimeType" validate:"required,mime_type"`
	Notes    string `json:"notes,omitempty"`
}

// UploadReply describes where the bytes went. Presigned fields are set only
// when the client has to upload the bytes itself.
type UploadReply struct {
	Id             string            `json:"id"`
	Strategy       string            `json:"strategy"`
	Status         RecordStatus      `json:"status"`
	Locator        string            `json:"locator,omitempty"`
	UploadEndpoint string            `json:"uploadEndpoint,omitempty"`
	FormFields     map[string]string `json:"formFields,omitempty"`
	ExpirySeconds  int64             `json:"expirySeconds,omitempty"`
	ConfirmUrl     string            `json:"confirmUrl,omitempty"`
}

type ProcessReply struct {
	Id            string       `json:"id"`
	Status        RecordStatus `json:"status"`
	ResultSummary string       `json:"resultSummary"`
	Cached        bool         `json:"cached"`
}

// SummaryRequest either generates a summary in Format or saves SummaryData.
type SummaryRequest struct {
	Format      string       `json:"format,omitempty" validate:"omitempty,oneof=formal casual"`
	SummaryData *SummaryData `json:"summaryData,omitempty"`
}

type SummaryData struct {
	Content         string   `json:"content" validate:"required"`
	Format          string   `json:"format,omitempty" validate:"omitempty,oneof=formal casual"`
	ProductMentions []string `json:"productMentions,omitempty"`
	MarketTrends    []string `json:"marketTrends,omitempty"`
	IsCasual        bool     `json:"isCasual"`
}

type Summary struct {
	Id                 string    `json:"id"`
	TranscriptionId    string    `json:"transcriptionId"`
	Content            string    `json:"content"`
	Format             string    `json:"format"`
	ProductMentions    []string  `json:"productMentions"`
	MarketTrends       []string  `json:"marketTrends"`
	IsCasual           bool      `json:"isCasual"`
	VerificationStatus string    `json:"verificationStatus"`
	CreatedAt          time.Time `json:"createdAt"`
}

type SummaryList []Summary

type ProductTermCreate struct {
	Term        string  `json:"term" validate:"required,product_term"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

type ProductTerm struct {
	Id          string    `json:"id"`
	Term        string    `json:"term"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ProductTermList []ProductTerm

type SearchHit struct {
	TranscriptionId string  `json:"transcriptionId"`
	Source          string  `json:"source"`
	SummaryId       string  `json:"summaryId,omitempty"`
	Filename        string  `json:"filename"`
	Chunk           int     `json:"chunk"`
	Content         string  `json:"content"`
	Similarity      float32 `json:"similarity"`
}

type SearchReply struct {
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits"`
}

// KnowledgeEntry is a processed record whose content can be searched or discussed.
type KnowledgeEntry struct {
	RecordId      string    `json:"recordId"`
	Kind          string    `json:"kind"`
	Filename      string    `json:"filename"`
	Chunks        int       `json:"chunks"`
	VectorStoreId string    `json:"vectorStoreId,omitempty"`
	OpenaiFileId  string    `json:"openaiFileId,omitempty"`
	SummaryId     string    `json:"summaryId,omitempty"`
	SummaryChunks int       `json:"summaryChunks"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type KnowledgeList []KnowledgeEntry

type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatRequest is a conversation whose last message is the question to answer.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Limit    int           `json:"limit,omitempty" validate:"gte=0,lte=50"`
}

type ChatReply struct {
	Answer  string      `json:"answer"`
	Sources []SearchHit `json:"sources"`
}

type Health struct {
	Status      string `json:"status"`
	VersionName string `json:"versionName"`
	GitCommit   string `json:"gitCommit,omitempty"`
}

// Error is the body of every failed request.
type Error struct {
	HTTPStatusCode int    `json:"-"`
	Error          string `json:"error"`
	Details        any    `json:"details,omitempty"`
}

func (e *Error) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func (r Record) Render(w http.ResponseWriter, req *http.Request) error        { return nil }
func (r RecordCreated) Render(w http.ResponseWriter, req *http.Request) error { return nil }
func (u UploadReply) Render(w http.ResponseWriter, req *http.Request) error   { return nil }
func (p ProcessReply) Render(w http.ResponseWriter, req *http.Request) error  { return nil }
func (s Summary) Render(w http.ResponseWriter, req *http.Request) error       { return nil }
func (p ProductTerm) Render(w http.ResponseWriter, req *http.Request) error   { return nil }
func (s SearchReply) Render(w http.ResponseWriter, req *http.Request) error   { return nil }
func (c ChatReply) Render(w http.ResponseWriter, req *http.Request) error     { return nil }
func (h Health) Render(w http.ResponseWriter, req *http.Request) error        { return nil }
