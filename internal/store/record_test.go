package store_test

import (
	"context"
	"errors"
	"sync"
	"time"

	st "github.com/kubev2v/meeting-intelligence/internal/store"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func newRecord(id string, kind model.RecordKind, status model.RecordStatus) model.Record {
	return model.Record{
		ID:        id,
		Kind:      kind,
		Filename:  "call.mp3",
		ObjectKey: "uploads/" + id + "-call.mp3",
		Locator:   "http://objects.local/uploads/" + id + "-call.mp3",
		FileSize:  3_000_000,
		MimeType:  "audio/mpeg",
		Status:    status,
	}
}

func statusPtr(s model.RecordStatus) *model.RecordStatus {
	return &s
}

var _ = Describe("record store", func() {
	var s st.Store

	BeforeEach(func() {
		s, _ = newTestStore()
		DeferCleanup(s.Close)
	})

	Context("create and get", func() {
		It("stores a record with version 1 and default enrichment", func() {
			created, err := s.Record().Create(context.TODO(), newRecord("r1", model.KindTranscription, model.StatusPending))
			Expect(err).To(BeNil())
			Expect(created.Version).To(BeNumerically("==", 1))

			got, err := s.Record().Get(context.TODO(), "r1")
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.StatusPending))
			Expect(got.Enrichment()).To(HaveKey(model.EnrichmentSchemaVersionKey))
		})

		It("reports a missing record", func() {
			_, err := s.Record().Get(context.TODO(), "missing")
			Expect(errors.Is(err, st.ErrRecordNotFound)).To(BeTrue())
		})

		It("refuses a duplicated id", func() {
			_, err := s.Record().Create(context.TODO(), newRecord("r1", model.KindTranscription, model.StatusPending))
			Expect(err).To(BeNil())
			_, err = s.Record().Create(context.TODO(), newRecord("r1", model.KindTranscription, model.StatusPending))
			Expect(errors.Is(err, st.ErrDuplicateKey)).To(BeTrue())
		})

		It("refuses a processed record without content", func() {
			_, err := s.Record().Create(context.TODO(), newRecord("r1", model.KindTranscription, model.StatusProcessed))
			Expect(errors.Is(err, st.ErrEmptyArtifact)).To(BeTrue())
		})
	})

	Context("list", func() {
		It("returns records of a kind newest first", func() {
			base := time.Now().UTC()
			for i, id := range []string{"old", "mid", "new"} {
				r := newRecord(id, model.KindTranscription, model.StatusPending)
				r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
				_, err := s.Record().Create(context.TODO(), r)
				Expect(err).To(BeNil())
			}
			_, err := s.Record().Create(context.TODO(), newRecord("doc", model.KindDocument, model.StatusPending))
			Expect(err).To(BeNil())

			records, err := s.Record().List(context.TODO(), st.NewRecordQueryFilter().ByKind(model.KindTranscription), nil)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(3))
			Expect(records[0].ID).To(Equal("new"))
			Expect(records[2].ID).To(Equal("old"))

			limited, err := s.Record().List(context.TODO(), st.NewRecordQueryFilter().ByKind(model.KindTranscription), st.NewRecordQueryOptions().WithLimit(1))
			Expect(err).To(BeNil())
			Expect(limited).To(HaveLen(1))
		})

		It("filters by status", func() {
			_, err := s.Record().Create(context.TODO(), newRecord("a", model.KindTranscription, model.StatusPending))
			Expect(err).To(BeNil())
			_, err = s.Record().Create(context.TODO(), newRecord("b", model.KindTranscription, model.StatusUploading))
			Expect(err).To(BeNil())

			records, err := s.Record().List(context.TODO(), st.NewRecordQueryFilter().ByStatus(model.StatusUploading), nil)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(1))
			Expect(records[0].ID).To(Equal("b"))
		})
	})

	Context("update", func() {
		BeforeEach(func() {
			_, err := s.Record().Create(context.TODO(), newRecord("r1", model.KindTranscription, model.StatusPending))
			Expect(err).To(BeNil())
		})

		It("keeps keys written by earlier updates", func() {
			_, err := s.Record().Update(context.TODO(), "r1", st.RecordUpdate{Enrichment: model.Enrichment{"a": "1"}})
			Expect(err).To(BeNil())
			updated, err := s.Record().Update(context.TODO(), "r1", st.RecordUpdate{Enrichment: model.Enrichment{"b": "2"}})
			Expect(err).To(BeNil())

			Expect(updated.Enrichment()).To(HaveKeyWithValue("a", "1"))
			Expect(updated.Enrichment()).To(HaveKeyWithValue("b", "2"))
			Expect(updated.Version).To(BeNumerically("==", 3))
		})

		It("keeps keys written by concurrent writers", func() {
			var wg sync.WaitGroup
			for _, key := range []string{"first", "second"} {
				wg.Add(1)
				go func(key string) {
					defer GinkgoRecover()
					defer wg.Done()
					for i := 0; i < 3; i++ {
						_, err := s.Record().Update(context.TODO(), "r1", st.RecordUpdate{Enrichment: model.Enrichment{key: i}})
						Expect(err).To(BeNil())
					}
				}(key)
			}
			wg.Wait()

			got, err := s.Record().Get(context.TODO(), "r1")
			Expect(err).To(BeNil())
			Expect(got.Enrichment()).To(HaveKey("first"))
			Expect(got.Enrichment()).To(HaveKey("second"))
			Expect(got.Version).To(BeNumerically("==", 7))
		})

		It("rejects transitions outside the state machine", func() {
			_, err := s.Record().Update(context.TODO(), "r1", st.RecordUpdate{Status: statusPtr(model.StatusProcessed)})
			Expect(errors.Is(err, st.ErrInvalidTransition)).To(BeTrue())
		})

		It("refuses processed without content", func() {
			_, err := s.Record().Update(context.TODO(), "r1", st.RecordUpdate{Status: statusPtr(model.StatusProcessing)})
			Expect(err).To(BeNil())
			_, err = s.Record().Update(context.TODO(), "r1", st.RecordUpdate{Status: statusPtr(model.StatusProcessed)})
			Expect(errors.Is(err, st.ErrEmptyArtifact)).To(BeTrue())

			content := "hello"
			updated, err := s.Record().Update(context.TODO(), "r1", st.RecordUpdate{Status: statusPtr(model.StatusProcessed), Content: &content})
			Expect(err).To(BeNil())
			Expect(updated.Status).To(Equal(model.StatusProcessed))
			Expect(updated.Content).To(Equal("hello"))
		})

		It("honours the expected status guard", func() {
			_, err := s.Record().Update(context.TODO(), "r1", st.RecordUpdate{
				Enrichment:   model.Enrichment{"a": "1"},
				ExpectStatus: []model.RecordStatus{model.StatusFailed},
			})
			Expect(errors.Is(err, st.ErrStatusConflict)).To(BeTrue())

			got, err := s.Record().Get(context.TODO(), "r1")
			Expect(err).To(BeNil())
			Expect(got.Enrichment()).NotTo(HaveKey("a"))
		})

		It("reports a missing record", func() {
			_, err := s.Record().Update(context.TODO(), "missing", st.RecordUpdate{Enrichment: model.Enrichment{"a": "1"}})
			Expect(errors.Is(err, st.ErrRecordNotFound)).To(BeTrue())
		})
	})

	Context("transition status", func() {
		BeforeEach(func() {
			_, err := s.Record().Create(context.TODO(), newRecord("r1", model.KindTranscription, model.StatusPending))
			Expect(err).To(BeNil())
		})

		It("lets exactly one caller claim the record", func() {
			claimed, err := s.Record().TransitionStatus(context.TODO(), "r1", []model.RecordStatus{model.StatusPending}, model.StatusProcessing)
			Expect(err).To(BeNil())
			Expect(claimed.Status).To(Equal(model.StatusProcessing))

			current, err := s.Record().TransitionStatus(context.TODO(), "r1", []model.RecordStatus{model.StatusPending}, model.StatusProcessing)
			Expect(errors.Is(err, st.ErrStatusConflict)).To(BeTrue())
			Expect(current.Status).To(Equal(model.StatusProcessing))
		})

		It("refuses transitions the state machine does not allow", func() {
			_, err := s.Record().TransitionStatus(context.TODO(), "r1", []model.RecordStatus{model.StatusProcessed}, model.StatusPending)
			Expect(errors.Is(err, st.ErrInvalidTransition)).To(BeTrue())
		})

		It("refuses processed without content", func() {
			_, err := s.Record().TransitionStatus(context.TODO(), "r1", []model.RecordStatus{model.StatusPending}, model.StatusProcessing)
			Expect(err).To(BeNil())
			_, err = s.Record().TransitionStatus(context.TODO(), "r1", []model.RecordStatus{model.StatusProcessing}, model.StatusProcessed)
			Expect(errors.Is(err, st.ErrEmptyArtifact)).To(BeTrue())
		})
	})

	Context("delete", func() {
		It("removes the record and its summaries", func() {
			_, err := s.Record().Create(context.TODO(), newRecord("r1", model.KindTranscription, model.StatusPending))
			Expect(err).To(BeNil())
			_, err = s.Summary().Create(context.TODO(), model.Summary{RecordID: "r1", Content: "sum", Format: "formal", VerificationStatus: model.VerificationPending})
			Expect(err).To(BeNil())

			Expect(s.Record().Delete(context.TODO(), "r1")).To(Succeed())

			_, err = s.Record().Get(context.TODO(), "r1")
			Expect(errors.Is(err, st.ErrRecordNotFound)).To(BeTrue())
			summaries, err := s.Summary().ListByRecord(context.TODO(), "r1")
			Expect(err).To(BeNil())
			Expect(summaries).To(BeEmpty())
		})

		It("reports a missing record", func() {
			Expect(errors.Is(s.Record().Delete(context.TODO(), "missing"), st.ErrRecordNotFound)).To(BeTrue())
		})
	})

	Context("transaction", func() {
		It("rolls back a created record", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Record().Create(ctx, newRecord("r1", model.KindTranscription, model.StatusPending))
			Expect(err).To(BeNil())
			_, err = s.Record().Get(ctx, "r1")
			Expect(err).To(BeNil())

			_, err = st.Rollback(ctx)
			Expect(err).To(BeNil())

			_, err = s.Record().Get(context.TODO(), "r1")
			Expect(errors.Is(err, st.ErrRecordNotFound)).To(BeTrue())
		})

		It("commits a created record", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())
			_, err = s.Record().Create(ctx, newRecord("r1", model.KindTranscription, model.StatusPending))
			Expect(err).To(BeNil())
			_, err = st.Commit(ctx)
			Expect(err).To(BeNil())

			_, err = s.Record().Get(context.TODO(), "r1")
			Expect(err).To(BeNil())
		})

		It("rolls back when the function fails", func() {
			boom := errors.New("boom")
			err := s.WithinTransaction(context.TODO(), func(ctx context.Context) error {
				if _, err := s.Record().Create(ctx, newRecord("r1", model.KindTranscription, model.StatusPending)); err != nil {
					return err
				}
				return boom
			})
			Expect(errors.Is(err, boom)).To(BeTrue())

			_, err = s.Record().Get(context.TODO(), "r1")
			Expect(errors.Is(err, st.ErrRecordNotFound)).To(BeTrue())
		})

		It("commits when the function succeeds", func() {
			err := s.WithinTransaction(context.TODO(), func(ctx context.Context) error {
				_, err := s.Record().Create(ctx, newRecord("r2", model.KindDocument, model.StatusPending))
				return err
			})
			Expect(err).To(BeNil())

			_, err = s.Record().Get(context.TODO(), "r2")
			Expect(err).To(BeNil())
		})
	})
})
