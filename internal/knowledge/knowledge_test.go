package knowledge_test

import (
	"context"
	"math"
	"strings"

	"github.com/kubev2v/meeting-intelligence/internal/knowledge"
	"github.com/kubev2v/meeting-intelligence/internal/processor"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// letterEmbedding is a normalized letter histogram, enough to rank texts sharing words.
func letterEmbedding(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 27)
	v[26] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v, nil
}

var _ = Describe("knowledge index", func() {
	var index *knowledge.Index

	BeforeEach(func() {
		var err error
		index, err = knowledge.NewIndex(knowledge.Config{Collection: "test", ChunkSize: 40}, letterEmbedding)
		Expect(err).To(BeNil())
	})

	It("chunks on word boundaries", func() {
		chunks := knowledge.Chunk("alpha beta gamma delta", 11)
		Expect(chunks).To(Equal([]string{"alpha beta", "gamma delta"}))
	})

	It("cuts words longer than the chunk size", func() {
		Expect(knowledge.Chunk("abcdefgh", 3)).To(Equal([]string{"abc", "def", "gh"}))
		Expect(knowledge.Chunk("   ", 3)).To(BeEmpty())
	})

	It("indexes through the processing step and merges metadata", func() {
		artifact, err := index.Indexer().Process(context.TODO(), processor.Input{
			RecordID: "rec-1",
			Filename: "call.mp3",
			Text:     "we talked about zebra zoo zones and then about the quarterly budget review",
		})
		Expect(err).To(BeNil())
		Expect(artifact.Content).To(BeEmpty())
		Expect(artifact.Metadata).To(HaveKeyWithValue(knowledge.MetadataCollection, "test"))
		Expect(artifact.Metadata[knowledge.MetadataChunks]).To(BeNumerically(">", 1))
		Expect(index.Count()).To(Equal(artifact.Metadata[knowledge.MetadataChunks]))
	})

	It("replaces the chunks of a re-indexed record", func() {
		_, err := index.Add(context.TODO(), "rec-1", "a.mp3", "first version of the text")
		Expect(err).To(BeNil())
		n, err := index.Add(context.TODO(), "rec-1", "a.mp3", "second")
		Expect(err).To(BeNil())
		Expect(n).To(Equal(1))
		Expect(index.Count()).To(Equal(1))
	})

	It("searches with a limit bounded by the collection size", func() {
		_, err := index.Add(context.TODO(), "rec-1", "a.mp3", "zebra zoo zones")
		Expect(err).To(BeNil())
		_, err = index.Add(context.TODO(), "rec-2", "b.mp3", "budget review")
		Expect(err).To(BeNil())

		hits, err := index.Search(context.TODO(), "zebra zoo", 10)
		Expect(err).To(BeNil())
		Expect(hits).To(HaveLen(2))
		Expect(hits[0].RecordID).To(Equal("rec-1"))
		Expect(hits[0].Filename).To(Equal("a.mp3"))
	})

	It("keeps summaries apart from transcripts", func() {
		_, err := index.Add(context.TODO(), "rec-1", "a.mp3", "quarterly budget review")
		Expect(err).To(BeNil())
		n, err := index.AddSummary(context.TODO(), "rec-1", "sum-1", "a.mp3", "zebra zoo zones")
		Expect(err).To(BeNil())
		Expect(n).To(Equal(1))

		_, err = index.Add(context.TODO(), "rec-1", "a.mp3", "budget")
		Expect(err).To(BeNil())
		Expect(index.Count()).To(Equal(2))

		_, err = index.AddSummary(context.TODO(), "rec-1", "sum-2", "a.mp3", "zebra")
		Expect(err).To(BeNil())
		Expect(index.Count()).To(Equal(2))

		hits, err := index.Search(context.TODO(), "zebra", 1)
		Expect(err).To(BeNil())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].Source).To(Equal(knowledge.SourceSummary))
		Expect(hits[0].SummaryID).To(Equal("sum-2"))
		Expect(hits[0].RecordID).To(Equal("rec-1"))

		Expect(index.Remove(context.TODO(), "rec-1")).To(Succeed())
		Expect(index.Count()).To(BeZero())
	})

	It("returns nothing on an empty collection", func() {
		hits, err := index.Search(context.TODO(), "anything", 3)
		Expect(err).To(BeNil())
		Expect(hits).To(BeEmpty())
	})

	It("rejects an empty query", func() {
		_, err := index.Search(context.TODO(), "  ", 3)
		Expect(err).NotTo(BeNil())
	})
})
