package processor_test

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/kubev2v/meeting-intelligence/internal/processor"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("chain", func() {
	It("feeds content forward and merges metadata", func() {
		var seen []string
		first := processor.Func(func(ctx context.Context, in processor.Input) (*processor.Artifact, error) {
			data, _ := io.ReadAll(in.Source)
			seen = append(seen, string(data))
			return &processor.Artifact{Content: "transcript", Metadata: map[string]any{"a": 1, "b": 1}}, nil
		})
		second := processor.Func(func(ctx context.Context, in processor.Input) (*processor.Artifact, error) {
			data, _ := io.ReadAll(in.Source)
			seen = append(seen, string(data))
			Expect(in.Text).To(Equal("transcript"))
			return &processor.Artifact{Metadata: map[string]any{"b": 2}}, nil
		})

		result, err := processor.Chain{first, second}.Process(context.TODO(), processor.Input{Source: bytes.NewReader([]byte("bytes"))})
		Expect(err).To(BeNil())
		Expect(result.Content).To(Equal("transcript"))
		Expect(result.Metadata).To(HaveKeyWithValue("a", 1))
		Expect(result.Metadata).To(HaveKeyWithValue("b", 2))
		Expect(seen).To(Equal([]string{"bytes", "bytes"}))
	})

	It("stops at the first failing step", func() {
		called := false
		failing := processor.Func(func(ctx context.Context, in processor.Input) (*processor.Artifact, error) {
			return nil, errors.New("boom")
		})
		after := processor.Func(func(ctx context.Context, in processor.Input) (*processor.Artifact, error) {
			called = true
			return nil, nil
		})

		_, err := processor.Chain{failing, after}.Process(context.TODO(), processor.Input{})
		Expect(err).To(MatchError("boom"))
		Expect(called).To(BeFalse())
	})

	It("does not start when the context is done", func() {
		ctx, cancel := context.WithCancel(context.TODO())
		cancel()
		_, err := processor.Chain{processor.Func(func(ctx context.Context, in processor.Input) (*processor.Artifact, error) {
			return &processor.Artifact{Content: "x"}, nil
		})}.Process(ctx, processor.Input{})
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})

var _ = Describe("pdf inspector", func() {
	It("rejects bytes that are not a pdf", func() {
		_, err := processor.NewPDFInspector().Process(context.TODO(), processor.Input{
			Source: bytes.NewReader([]byte("ID3 this is an mp3 frame")),
		})
		Expect(errors.Is(err, processor.ErrMalformedPDF)).To(BeTrue())
	})

	It("rejects a missing source", func() {
		_, err := processor.NewPDFInspector().Process(context.TODO(), processor.Input{})
		Expect(errors.Is(err, processor.ErrMalformedPDF)).To(BeTrue())
	})
})
