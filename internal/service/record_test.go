package service_test

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/kubev2v/meeting-intelligence/internal/service"
	"github.com/kubev2v/meeting-intelligence/internal/storage"
	st "github.com/kubev2v/meeting-intelligence/internal/store"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingIndex struct {
	removed []string
	err     error
}

func (r *recordingIndex) Remove(_ context.Context, recordID string) error {
	r.removed = append(r.removed, recordID)
	return r.err
}

var _ = Describe("record service", func() {
	var (
		s       st.Store
		gateway *storage.MemoryGateway
		index   *recordingIndex
		srv     *service.RecordService
		uploads *service.UploadService
	)

	BeforeEach(func() {
		s = newTestStore()
		gateway = storage.NewMemoryGateway("http://objects.local")
		index = &recordingIndex{}
		srv = service.NewRecordService(s, gateway, index)
		uploads = service.NewUploadService(s, gateway, testPolicy, "http://api.local", time.Second)
	})

	upload := func(kind model.RecordKind, name, mime string, data []byte) *model.Record {
		result, err := uploads.Upload(context.TODO(), kind, service.FileMeta{
			Filename: name, Size: int64(len(data)), MimeType: mime,
		}, bytes.NewReader(data))
		Expect(err).To(BeNil())
		return result.Record
	}

	Context("list", func() {
		It("returns only the requested kind, newest first", func() {
			first := upload(model.KindTranscription, "a.mp3", "audio/mpeg", mp3Bytes(100))
			upload(model.KindDocument, "a.pdf", "application/pdf", []byte("%PDF-1.4"))
			time.Sleep(5 * time.Millisecond)
			second := upload(model.KindTranscription, "b.mp3", "audio/mpeg", mp3Bytes(100))

			records, err := srv.List(context.TODO(), model.KindTranscription, service.RecordFilter{})
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(2))
			Expect(records[0].ID).To(Equal(second.ID))
			Expect(records[1].ID).To(Equal(first.ID))
		})

		It("filters by status and rejects unknown ones", func() {
			upload(model.KindTranscription, "a.mp3", "audio/mpeg", mp3Bytes(100))

			records, err := srv.List(context.TODO(), model.KindTranscription, service.RecordFilter{Status: model.StatusProcessed})
			Expect(err).To(BeNil())
			Expect(records).To(BeEmpty())

			_, err = srv.List(context.TODO(), model.KindTranscription, service.RecordFilter{Status: "done"})
			var verr *service.ErrValidation
			Expect(errors.As(err, &verr)).To(BeTrue())
		})

		It("honours the limit", func() {
			for range 3 {
				upload(model.KindTranscription, "a.mp3", "audio/mpeg", mp3Bytes(100))
			}
			records, err := srv.List(context.TODO(), model.KindTranscription, service.RecordFilter{Limit: 2})
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(2))
		})
	})

	Context("get", func() {
		It("does not leak records of the other kind", func() {
			doc := upload(model.KindDocument, "a.pdf", "application/pdf", []byte("%PDF-1.4"))

			_, err := srv.Get(context.TODO(), model.KindTranscription, doc.ID)
			var nerr *service.ErrResourceNotFound
			Expect(errors.As(err, &nerr)).To(BeTrue())

			got, err := srv.Get(context.TODO(), model.KindDocument, doc.ID)
			Expect(err).To(BeNil())
			Expect(got.Filename).To(Equal("a.pdf"))
		})
	})

	Context("delete", func() {
		It("removes the record, its object and its index entries", func() {
			record := upload(model.KindTranscription, "a.mp3", "audio/mpeg", mp3Bytes(100))
			Expect(gateway.Has(record.ObjectKey)).To(BeTrue())

			Expect(srv.Delete(context.TODO(), model.KindTranscription, record.ID)).To(Succeed())

			_, err := s.Record().Get(context.TODO(), record.ID)
			Expect(errors.Is(err, st.ErrRecordNotFound)).To(BeTrue())
			Expect(gateway.Has(record.ObjectKey)).To(BeFalse())
			Expect(index.removed).To(ConsistOf(record.ID))
		})

		It("still succeeds when the index cleanup fails", func() {
			index.err = errors.New("index is gone")
			record := upload(model.KindTranscription, "a.mp3", "audio/mpeg", mp3Bytes(100))

			Expect(srv.Delete(context.TODO(), model.KindTranscription, record.ID)).To(Succeed())
		})

		It("refuses to delete a record while it is processing", func() {
			_, err := s.Record().Create(context.TODO(), model.Record{
				ID: "busy", Kind: model.KindTranscription, Filename: "a.mp3", FileSize: 1, MimeType: "audio/mpeg", Status: model.StatusProcessing,
			})
			Expect(err).To(BeNil())

			err = srv.Delete(context.TODO(), model.KindTranscription, "busy")
			var terr *service.ErrInvalidTransition
			Expect(errors.As(err, &terr)).To(BeTrue())

			_, err = s.Record().Get(context.TODO(), "busy")
			Expect(err).To(BeNil())
		})

		It("returns not found for an unknown record", func() {
			err := srv.Delete(context.TODO(), model.KindDocument, "missing")
			var nerr *service.ErrResourceNotFound
			Expect(errors.As(err, &nerr)).To(BeTrue())
			Expect(index.removed).To(BeEmpty())
		})
	})
})
