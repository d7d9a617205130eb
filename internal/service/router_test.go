package service_test

import (
	"errors"

	"github.com/kubev2v/meeting-intelligence/internal/service"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("upload router", func() {
	serverPolicy := service.UploadPolicy{
		InlineThreshold:   inlineThreshold,
		MaxFileSize:       maxFileSize,
		LargeFileStrategy: service.LargeFileServer,
	}

	DescribeTable("chooses a strategy",
		func(policy service.UploadPolicy, kind model.RecordKind, meta service.FileMeta, hasBytes bool, expected service.Strategy) {
			strategy, err := service.Route(policy, kind, meta, hasBytes)
			Expect(err).To(BeNil())
			Expect(strategy).To(Equal(expected))
		},
		Entry("small file with bytes goes inline", testPolicy, model.KindTranscription,
			service.FileMeta{Filename: "call.mp3", Size: 3_000_000, MimeType: "audio/mpeg"}, true, service.StrategyInline),
		Entry("file at the threshold goes inline", testPolicy, model.KindTranscription,
			service.FileMeta{Filename: "call.mp3", Size: inlineThreshold, MimeType: "audio/mpeg"}, true, service.StrategyInline),
		Entry("small file without bytes is presigned", testPolicy, model.KindDocument,
			service.FileMeta{Filename: "a.pdf", Size: 1000, MimeType: "application/pdf"}, false, service.StrategyPresigned),
		Entry("large file is presigned", testPolicy, model.KindTranscription,
			service.FileMeta{Filename: "long.mp4", Size: inlineThreshold + 1, MimeType: "video/mp4"}, true, service.StrategyPresigned),
		Entry("large file with bytes goes through the server when configured", serverPolicy, model.KindTranscription,
			service.FileMeta{Filename: "long.mp4", Size: 200_000_000, MimeType: "video/mp4"}, true, service.StrategyServerMediated),
		Entry("large file without bytes is presigned even with the server strategy", serverPolicy, model.KindTranscription,
			service.FileMeta{Filename: "long.mp4", Size: 200_000_000, MimeType: "video/mp4"}, false, service.StrategyPresigned),
		Entry("mime parameters are ignored", testPolicy, model.KindTranscription,
			service.FileMeta{Filename: "a.ogg", Size: 10, MimeType: "Audio/Ogg; codecs=opus"}, true, service.StrategyInline),
	)

	DescribeTable("rejects before any I/O",
		func(kind model.RecordKind, meta service.FileMeta, target any) {
			_, err := service.Route(testPolicy, kind, meta, true)
			Expect(err).NotTo(BeNil())
			Expect(errors.As(err, target)).To(BeTrue())
		},
		Entry("empty filename", model.KindTranscription,
			service.FileMeta{Filename: " ", Size: 10, MimeType: "audio/mpeg"}, new(*service.ErrValidation)),
		Entry("zero size", model.KindTranscription,
			service.FileMeta{Filename: "a.mp3", Size: 0, MimeType: "audio/mpeg"}, new(*service.ErrValidation)),
		Entry("unknown kind", model.RecordKind("image"),
			service.FileMeta{Filename: "a.png", Size: 10, MimeType: "image/png"}, new(*service.ErrValidation)),
		Entry("pdf as transcription", model.KindTranscription,
			service.FileMeta{Filename: "a.pdf", Size: 10, MimeType: "application/pdf"}, new(*service.ErrUnsupportedMediaType)),
		Entry("audio as document", model.KindDocument,
			service.FileMeta{Filename: "a.mp3", Size: 10, MimeType: "audio/mpeg"}, new(*service.ErrUnsupportedMediaType)),
		Entry("two gigabytes", model.KindTranscription,
			service.FileMeta{Filename: "huge.mp4", Size: 2_000_000_000, MimeType: "video/mp4"}, new(*service.ErrPayloadTooLarge)),
	)

	It("builds object keys per kind", func() {
		Expect(service.ObjectKey(model.KindTranscription, "id", "call.mp3")).To(Equal("uploads/id-call.mp3"))
		Expect(service.ObjectKey(model.KindDocument, "id", "report.pdf")).To(Equal("pdfs/id.pdf"))
	})
})
