package export

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Printers", func() {
	var job Job

	BeforeEach(func() {
		job = Job{
			ID:          "job-42",
			Title:       "AutoZone 4129",
			ContentType: "text/html; charset=utf-8",
			Document:    []byte("<!doctype html><p>receipt</p>"),
			CreatedAt:   time.Now(),
		}
	})

	Describe("SpoolPrinter", func() {
		var (
			tempDir string
			printer *SpoolPrinter
		)

		BeforeEach(func() {
			tempDir = GinkgoT().TempDir()
			spool, err := NewLocalStorage(tempDir)
			Expect(err).NotTo(HaveOccurred())
			printer = NewSpoolPrinter(spool)
		})

		It("should write the job document named after the job", func() {
			Expect(printer.Print(context.Background(), job)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tempDir, "job-42.html"))
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(job.Document))
		})

		It("should not spool a cancelled job", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			Expect(printer.Print(ctx, job)).To(MatchError(context.Canceled))
			Expect(filepath.Join(tempDir, "job-42.html")).NotTo(BeAnExistingFile())
		})

		It("should wrap storage failures", func() {
			failing := NewSpoolPrinter(&mockStorage{saveErr: os.ErrPermission})
			err := failing.Print(context.Background(), job)
			Expect(err).To(MatchError(os.ErrPermission))
			Expect(err.Error()).To(ContainSubstring("job-42"))
		})
	})

	Describe("CommandPrinter", func() {
		It("should reject an empty command line", func() {
			_, err := NewCommandPrinter("   ")
			Expect(err).To(HaveOccurred())
		})

		It("should pipe the document to the command", func() {
			out := filepath.Join(GinkgoT().TempDir(), "printed.html")
			printer, err := NewCommandPrinter("tee " + out)
			Expect(err).NotTo(HaveOccurred())

			Expect(printer.Print(context.Background(), job)).To(Succeed())
			Expect(os.ReadFile(out)).To(Equal(job.Document))
		})

		It("should report a failing command", func() {
			printer, err := NewCommandPrinter("false")
			Expect(err).NotTo(HaveOccurred())

			err = printer.Print(context.Background(), job)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("running false for job job-42"))
		})
	})
})
