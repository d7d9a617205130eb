package openai_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/kubev2v/meeting-intelligence/internal/processor"
	"github.com/kubev2v/meeting-intelligence/internal/processor/openai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func completion(content string) string {
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   "gpt-4-turbo",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

var _ = Describe("openai client", func() {
	var (
		server *httptest.Server
		mux    *http.ServeMux
		client *openai.Client
	)

	BeforeEach(func() {
		mux = http.NewServeMux()
		server = httptest.NewServer(mux)
		client = openai.NewClient("sk-test", openai.WithBaseURL(server.URL), openai.WithMaxRetries(0))
	})

	AfterEach(func() {
		server.Close()
	})

	Context("transcriber", func() {
		It("posts the audio with model and params", func() {
			mux.HandleFunc("/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
				Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
				Expect(r.FormValue("model")).To(Equal("whisper-1"))
				Expect(r.FormValue("language")).To(Equal("en"))

				f, header, err := r.FormFile("file")
				Expect(err).To(BeNil())
				data, _ := io.ReadAll(f)
				Expect(string(data)).To(Equal("ID3audio"))
				Expect(header.Filename).To(Equal("call.mp3"))

				writeJSON(w, http.StatusOK, `{"text":" hello world "}`)
			})

			t := openai.NewTranscriber(client, "whisper-1", map[string]string{"language": "en", "response_format": "text"})
			artifact, err := t.Process(context.TODO(), processor.Input{
				Filename: "call.mp3",
				MimeType: "audio/mpeg",
				Source:   bytes.NewReader([]byte("ID3audio")),
			})
			Expect(err).To(BeNil())
			Expect(artifact.Content).To(Equal("hello world"))
			Expect(artifact.Metadata).To(HaveKeyWithValue(openai.MetadataTranscriptionModel, "whisper-1"))
		})

		It("refuses a temperature that is not a number", func() {
			var calls int32
			mux.HandleFunc("/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				writeJSON(w, http.StatusOK, `{"text":"x"}`)
			})

			_, err := openai.NewTranscriber(client, "whisper-1", map[string]string{"temperature": "warm"}).Process(context.TODO(), processor.Input{
				Filename: "a.wav",
				Source:   bytes.NewReader([]byte("RIFF")),
			})
			Expect(err).To(MatchError(ContainSubstring("temperature")))
			Expect(atomic.LoadInt32(&calls)).To(BeZero())
		})

		It("maps api errors to provider errors", func() {
			mux.HandleFunc("/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				writeJSON(w, http.StatusTooManyRequests, `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`)
			})

			_, err := openai.NewTranscriber(client, "whisper-1", nil).Process(context.TODO(), processor.Input{
				Filename: "a.wav",
				Source:   bytes.NewReader([]byte("RIFF")),
			})
			var perr *processor.ProviderError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Provider).To(Equal("openai"))
			Expect(perr.StatusCode).To(Equal(http.StatusTooManyRequests))
			Expect(perr.Body).To(ContainSubstring("quota"))
		})
	})

	Context("document uploader", func() {
		It("uploads the file and attaches it to a lazily created vector store", func() {
			var storesCreated int32
			mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
				Expect(r.FormValue("purpose")).To(Equal("assistants"))
				writeJSON(w, http.StatusOK, `{"id":"file-1","object":"file","bytes":8,"created_at":0,"filename":"report.pdf","purpose":"assistants","status":"uploaded"}`)
			})
			mux.HandleFunc("/vector_stores", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var body map[string]any
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body).To(HaveKeyWithValue("name", "meeting-intelligence"))
				atomic.AddInt32(&storesCreated, 1)
				writeJSON(w, http.StatusOK, `{"id":"vs-1","object":"vector_store","created_at":0,"name":"meeting-intelligence","status":"completed"}`)
			})
			mux.HandleFunc("/vector_stores/vs-1/files", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var body map[string]any
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body).To(HaveKeyWithValue("file_id", "file-1"))
				writeJSON(w, http.StatusOK, `{"id":"file-1","object":"vector_store.file","created_at":0,"vector_store_id":"vs-1","status":"in_progress"}`)
			})

			uploader := openai.NewDocumentUploader(client, "")
			for i := 0; i < 2; i++ {
				artifact, err := uploader.Process(context.TODO(), processor.Input{
					Filename: "report.pdf",
					Source:   bytes.NewReader([]byte("%PDF-1.7")),
				})
				Expect(err).To(BeNil())
				Expect(artifact.Content).To(Equal("file-1"))
				Expect(artifact.Metadata).To(HaveKeyWithValue(openai.MetadataVectorStoreID, "vs-1"))
				Expect(artifact.Metadata).To(HaveKeyWithValue(openai.MetadataOpenAIFileID, "file-1"))
			}
			Expect(atomic.LoadInt32(&storesCreated)).To(BeNumerically("==", 1))
		})

		It("uses the configured vector store", func() {
			mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				writeJSON(w, http.StatusOK, `{"id":"file-2","object":"file","purpose":"assistants"}`)
			})
			mux.HandleFunc("/vector_stores", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Fail("no vector store should be created")
			})
			mux.HandleFunc("/vector_stores/vs-configured/files", func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				writeJSON(w, http.StatusOK, `{"id":"file-2","object":"vector_store.file","vector_store_id":"vs-configured"}`)
			})

			artifact, err := openai.NewDocumentUploader(client, "vs-configured").Process(context.TODO(), processor.Input{
				Filename: "report.pdf",
				Source:   bytes.NewReader([]byte("%PDF-1.7")),
			})
			Expect(err).To(BeNil())
			Expect(artifact.Metadata).To(HaveKeyWithValue(openai.MetadataVectorStoreID, "vs-configured"))
		})
	})

	Context("summarizer", func() {
		It("parses the json analysis", func() {
			mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var req map[string]any
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req["model"]).To(Equal("gpt-4-turbo"))
				Expect(req["response_format"]).To(HaveKeyWithValue("type", "json_object"))
				messages := req["messages"].([]any)
				Expect(messages[1].(map[string]any)["content"]).To(ContainSubstring("Acme Cloud"))

				writeJSON(w, http.StatusOK, completion(`{"summary":"We discussed pricing.","marketTrends":["AI adoption"],"productMentions":["Acme Cloud"],"isCasual":true}`))
			})

			analysis, err := openai.NewSummarizer(client, "gpt-4-turbo").Summarize(context.TODO(), "transcript", "casual", []string{"Acme Cloud"})
			Expect(err).To(BeNil())
			Expect(analysis.Summary).To(Equal("We discussed pricing."))
			Expect(analysis.MarketTrends).To(ConsistOf("AI adoption"))
			Expect(analysis.ProductMentions).To(ConsistOf("Acme Cloud"))
			Expect(analysis.IsCasual).To(BeTrue())
		})

		It("rejects non json content", func() {
			mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				writeJSON(w, http.StatusOK, completion("not json"))
			})

			_, err := openai.NewSummarizer(client, "gpt-4-turbo").Summarize(context.TODO(), "transcript", "", nil)
			Expect(err).To(MatchError(ContainSubstring("not valid json")))
		})
	})

	Context("assistant", func() {
		It("sends the excerpts and the conversation", func() {
			mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var req map[string]any
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req).NotTo(HaveKey("response_format"))
				messages := req["messages"].([]any)
				Expect(messages).To(HaveLen(5))
				Expect(messages[1].(map[string]any)["content"]).To(ContainSubstring("[1] pricing went up"))
				Expect(messages[3].(map[string]any)["role"]).To(Equal("assistant"))
				Expect(messages[4].(map[string]any)["content"]).To(Equal("why?"))

				writeJSON(w, http.StatusOK, completion(" Because of demand. "))
			})

			answer, err := openai.NewAssistant(client, "gpt-4-turbo").Reply(context.TODO(), []openai.Turn{
				{Role: openai.RoleUser, Content: "what happened to pricing?"},
				{Role: openai.RoleAssistant, Content: "it went up"},
				{Role: openai.RoleUser, Content: "why?"},
			}, []string{"pricing went up"})
			Expect(err).To(BeNil())
			Expect(answer).To(Equal("Because of demand."))
		})

		It("needs at least one message", func() {
			_, err := openai.NewAssistant(client, "gpt-4-turbo").Reply(context.TODO(), nil, nil)
			Expect(err).To(MatchError(ContainSubstring("no message")))
		})
	})

	Context("embedder", func() {
		It("returns the first vector as float32", func() {
			mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var req map[string]any
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req["input"]).To(Equal("hello"))
				Expect(req["model"]).To(Equal("text-embedding-3-small"))
				writeJSON(w, http.StatusOK, `{"object":"list","model":"text-embedding-3-small","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`)
			})

			vector, err := openai.NewEmbedder(client, "text-embedding-3-small").Embed(context.TODO(), "hello")
			Expect(err).To(BeNil())
			Expect(vector).To(Equal([]float32{0.5, 0.25}))
		})
	})
})
