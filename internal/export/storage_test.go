package export

import (
	"io/fs"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			savedName string
			err       error
		)

		BeforeEach(func() {
			filename = "receipt-20141113-094900.pdf"
		})

		JustBeforeEach(func() {
			savedName, err = storage.Save(filename, []byte("%PDF-1.3"))
		})

		When("the name is already clean", func() {
			It("should keep the name", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedName).To(Equal(filename))
			})

			It("should write the file to disk", func() {
				Expect(filepath.Join(tmpDir, filename)).To(BeAnExistingFile())
			})
		})

		When("the name tries to escape the directory", func() {
			BeforeEach(func() {
				filename = "../../etc/passwd"
			})

			It("should store it inside the base directory", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedName).To(Equal("passwd"))
				Expect(filepath.Join(tmpDir, "passwd")).To(BeAnExistingFile())
			})
		})

		When("the name has odd characters", func() {
			BeforeEach(func() {
				filename = "my receipt (final)!!.pdf"
			})

			It("should replace them with dashes", func() {
				Expect(savedName).To(Equal("my-receipt-final.pdf"))
			})
		})
	})

	Describe("Get", func() {
		var (
			name string
			data []byte
			err  error
		)

		JustBeforeEach(func() {
			data, err = storage.Get(name)
		})

		When("file exists", func() {
			BeforeEach(func() {
				name = "job-1.html"
				_, saveErr := storage.Save(name, []byte("<html></html>"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("should return the file data", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("<html></html>"))
			})
		})

		When("file does not exist", func() {
			BeforeEach(func() {
				name = "nonexistent.pdf"
			})

			It("returns the error", func() {
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("reading file"))
				Expect(err).To(MatchError(fs.ErrNotExist))
			})
		})
	})

	Describe("Delete", func() {
		var (
			name string
			err  error
		)

		JustBeforeEach(func() {
			err = storage.Delete(name)
		})

		When("file exists", func() {
			BeforeEach(func() {
				name = "receipt.pdf"
				_, saveErr := storage.Save(name, []byte("x"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("should remove the file from disk", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, name)).NotTo(BeAnExistingFile())
			})
		})

		When("file does not exist", func() {
			BeforeEach(func() {
				name = "nonexistent.pdf"
			})

			It("returns the error", func() {
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("deleting file"))
				Expect(err).To(MatchError(fs.ErrNotExist))
			})
		})
	})

	Describe("NewLocalStorage", func() {
		It("should create a missing directory", func() {
			path := filepath.Join(GinkgoT().TempDir(), "downloads")
			s, err := NewLocalStorage(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeADirectory())
			_, err = s.Save("a.pdf", []byte("data"))
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
