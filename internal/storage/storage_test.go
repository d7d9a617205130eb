package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/kubev2v/meeting-intelligence/internal/storage"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("storage", func() {
	Context("object keys", func() {
		It("prefixes transcription uploads with the record id", func() {
			Expect(storage.TranscriptionKey("abc", "call.mp3")).To(Equal("uploads/abc-call.mp3"))
		})

		It("strips directories and spaces from the original name", func() {
			Expect(storage.TranscriptionKey("abc", "../../etc/weekly sync.m4a")).To(Equal("uploads/abc-weekly_sync.m4a"))
			Expect(storage.TranscriptionKey("abc", `C:\temp\a.wav`)).To(Equal("uploads/abc-a.wav"))
		})

		It("keeps only the extension for documents", func() {
			Expect(storage.DocumentKey("abc", "Quarterly Report.PDF")).To(Equal("pdfs/abc.pdf"))
			Expect(storage.DocumentKey("abc", "noext")).To(Equal("pdfs/abc.pdf"))
		})
	})

	Context("minio gateway", func() {
		It("requires an endpoint and a bucket", func() {
			_, err := storage.NewMinioGateway(storage.WithBucket("b"))
			Expect(err).NotTo(BeNil())
		})

		It("computes locators without contacting the store", func() {
			gw, err := storage.NewMinioGateway(
				storage.WithEndpoint("localhost:9000"),
				storage.WithBucket("meetings"),
				storage.WithSSL(false),
			)
			Expect(err).To(BeNil())
			Expect(gw.PublicLocator("uploads/abc-call.mp3")).To(Equal("http://localhost:9000/meetings/uploads/abc-call.mp3"))
		})

		It("prefers the public base url", func() {
			gw, err := storage.NewMinioGateway(
				storage.WithEndpoint("localhost:9000"),
				storage.WithBucket("meetings"),
				storage.WithPublicBaseURL("https://cdn.example.com/"),
			)
			Expect(err).To(BeNil())
			Expect(gw.PublicLocator("pdfs/abc.pdf")).To(Equal("https://cdn.example.com/pdfs/abc.pdf"))
		})
	})

	Context("memory gateway", func() {
		var gw *storage.MemoryGateway

		BeforeEach(func() {
			gw = storage.NewMemoryGateway("http://objects.local")
		})

		It("stores and reads back an object", func() {
			locator, err := gw.PutObject(context.TODO(), "uploads/a-b.mp3", bytes.NewReader([]byte("ID3data")), 7, "audio/mpeg")
			Expect(err).To(BeNil())
			Expect(locator).To(Equal("http://objects.local/uploads/a-b.mp3"))

			rc, info, err := gw.GetObject(context.TODO(), "uploads/a-b.mp3")
			Expect(err).To(BeNil())
			defer rc.Close()
			data, _ := io.ReadAll(rc)
			Expect(string(data)).To(Equal("ID3data"))
			Expect(info.Size).To(BeNumerically("==", 7))
			Expect(info.ContentType).To(Equal("audio/mpeg"))
		})

		It("rejects short bodies", func() {
			_, err := gw.PutObject(context.TODO(), "k", bytes.NewReader([]byte("abc")), 10, "audio/mpeg")
			Expect(err).NotTo(BeNil())
			Expect(gw.Has("k")).To(BeFalse())
		})

		It("reports missing objects", func() {
			_, err := gw.StatObject(context.TODO(), "missing")
			Expect(errors.Is(err, storage.ErrObjectNotFound)).To(BeTrue())
		})

		It("fails writes when configured to", func() {
			gw.PutErr = errors.New("bucket unavailable")
			_, err := gw.PutObject(context.TODO(), "k", bytes.NewReader([]byte("a")), 1, "audio/mpeg")
			Expect(err).To(MatchError(ContainSubstring("bucket unavailable")))
		})

		It("issues presigned credentials bounded by size", func() {
			p, err := gw.CreatePresignedUpload(context.TODO(), "k", "audio/mpeg", 100)
			Expect(err).To(BeNil())
			Expect(p.FormFields).To(HaveKeyWithValue("key", "k"))
			Expect(p.Expiry).To(Equal(time.Hour))
		})
	})
})
