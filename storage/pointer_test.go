package storage_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/goxlr/storage"
)

var _ = Describe("storage / Pointer", func() {
	It("parses the root pointer", func() {
		pointer, err := storage.ParsePointer("")
		Expect(err).To(Succeed())
		Expect(pointer.IsRoot()).To(BeTrue())
		Expect(pointer.String()).To(Equal(""))
	})

	It("unescapes ~0 and ~1", func() {
		pointer, err := storage.ParsePointer("/a~1b/c~0d/~01")
		Expect(err).To(Succeed())
		Expect(pointer).To(Equal(storage.Pointer{"a/b", "c~d", "~1"}))
		Expect(pointer.String()).To(Equal("/a~1b/c~0d/~01"))
	})

	It("refuses pointers that don't start with /", func() {
		_, err := storage.ParsePointer("mixers/S201")
		Expect(err).To(MatchError(storage.ErrInvalidPointer))
	})

	It("refuses empty keys", func() {
		_, err := storage.ParsePointer("/mixers//S201")
		Expect(err).To(MatchError(storage.ErrInvalidPointer))
	})

	It("converts to a gjson path", func() {
		pointer, err := storage.ParsePointer("/mixers/S201.1/levels/*")
		Expect(err).To(Succeed())
		Expect(pointer.Path()).To(Equal(`mixers.S201\.1.levels.\*`))
	})

	It("knows its parent", func() {
		pointer, err := storage.ParsePointer("/mixers/S201/levels")
		Expect(err).To(Succeed())
		Expect(pointer.Parent()).To(Equal(storage.Pointer{"mixers", "S201"}))
		Expect(pointer.Last()).To(Equal("levels"))
		Expect(pointer.HasPrefix(storage.Pointer{"mixers"})).To(BeTrue())
		Expect(pointer.HasPrefix(storage.Pointer{"config"})).To(BeFalse())
	})
})
