package studio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-studio/internal/export"
	"github.com/zombor/receipt-studio/internal/layout"
	"github.com/zombor/receipt-studio/internal/receipt"
	"github.com/zombor/receipt-studio/internal/totals"
)

// fakeCapturer returns a fixed bitmap and records the zoom it saw
type fakeCapturer struct {
	err      error
	zoomSeen float64
}

func (f *fakeCapturer) Capture(ctx context.Context, s export.Surface) (image.Image, error) {
	f.zoomSeen = s.Zoom()
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, 40, 120)), nil
}

// memoryStorage is an in-memory export.Storage
type memoryStorage struct {
	files map[string][]byte
}

func (m *memoryStorage) Save(filename string, data []byte) (string, error) {
	m.files[filename] = data
	return filename, nil
}

func (m *memoryStorage) Get(name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *memoryStorage) Delete(name string) error {
	if _, ok := m.files[name]; !ok {
		return fs.ErrNotExist
	}
	delete(m.files, name)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixedID struct{ id string }

func (g fixedID) Generate() string { return g.id }

func decodeReceipt(resp *http.Response) receiptResponse {
	defer resp.Body.Close()
	var body receiptResponse
	Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
	return body
}

func decodeError(resp *http.Response) string {
	defer resp.Body.Close()
	var body map[string]string
	Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
	return body["error"]
}

var _ = Describe("Server", func() {
	var (
		session     *Session
		server      *Server
		auth        BasicAuth
		capturer    *fakeCapturer
		downloads   *memoryStorage
		spool       *memoryStorage
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		for _, method := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
			ghttpServer.RouteToHandler(method, regexp.MustCompile(`.*`), server.Handler().ServeHTTP)
		}
	}

	newSession := func() *Session {
		pipeline := export.NewPipelineWithDeps(capturer, export.NewPDFEncoder(), export.NewSpoolPrinter(spool), downloads,
			fixedID{id: "job-7"}, fixedClock{now: time.Date(2014, 11, 13, 9, 49, 0, 0, time.UTC)})
		return NewSession(receipt.Default(), totals.DefaultPolicy(), layout.Options{}, pipeline)
	}

	postJSON := func(path string, body any) *http.Response {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(ghttpServer.URL()+path, "application/json", bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	do := func(method, path string, body any) *http.Response {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		}
		req, err := http.NewRequest(method, ghttpServer.URL()+path, reader)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	acceptTerms := func() {
		resp := postJSON("/api/fields", fieldRequest{Field: receipt.FieldAcceptedTerms, Value: "true"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()
	}

	BeforeEach(func() {
		capturer = &fakeCapturer{}
		downloads = &memoryStorage{files: map[string][]byte{}}
		spool = &memoryStorage{files: map[string][]byte{}}
		session = newSession()
		auth = BasicAuth{}
		server = NewServerWithMux(session, auth, http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		It("should return the editor page", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Receipt Studio"))
		})

		It("should not answer unknown paths", func() {
			resp, err := http.Get(ghttpServer.URL() + "/nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})

		It("should reject other methods", func() {
			resp := do("POST", "/", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
			resp.Body.Close()
		})
	})

	Describe("static files", func() {
		It("should serve the stylesheet as CSS", func() {
			resp, err := http.Get(ghttpServer.URL() + "/static/app.css")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/css"))
		})

		It("should serve the script as JavaScript", func() {
			resp, err := http.Get(ghttpServer.URL() + "/static/app.js")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/javascript; charset=utf-8"))
		})
	})

	Describe("handleGetReceipt", func() {
		It("should return the form values and totals", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipt")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			body := decodeReceipt(resp)
			Expect(body.Fields[receipt.FieldStoreName]).To(Equal("AutoZone 4129"))
			Expect(body.Fields[receipt.FieldCashTendered]).To(Equal("10.00"))
			Expect(body.Fields[receipt.FieldTime]).To(Equal("09:49"))
			Expect(body.Items).To(HaveLen(2))
			Expect(body.Totals).To(Equal(totalsView{
				Subtotal: "7.98", Tax: "0.64", Total: "8.62", Cash: "10.00", Change: "1.38", ChangeComputed: true,
			}))
		})
	})

	Describe("handleSetField", func() {
		It("should apply the edit and return the new state", func() {
			resp := postJSON("/api/fields", fieldRequest{Field: receipt.FieldCashTendered, Value: "20"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeReceipt(resp).Totals.Change).To(Equal("11.38"))
		})

		It("should clear the cash tendered for exponent input", func() {
			resp := postJSON("/api/fields", fieldRequest{Field: receipt.FieldCashTendered, Value: "1e30000000"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body := decodeReceipt(resp)
			Expect(body.Fields[receipt.FieldCashTendered]).To(Equal(""))
			Expect(body.Totals.ChangeComputed).To(BeFalse())
		})

		It("should refuse unknown fields", func() {
			resp := postJSON("/api/fields", fieldRequest{Field: "colour", Value: "red"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decodeError(resp)).To(ContainSubstring("unknown field"))
		})

		It("should refuse to rename the store", func() {
			resp := postJSON("/api/fields", fieldRequest{Field: receipt.FieldStoreName, Value: "Other"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})

		It("should reject a malformed body", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/fields", "application/json", strings.NewReader("{"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("items", func() {
		It("should add, update and remove items", func() {
			resp := do("POST", "/api/items", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(decodeReceipt(resp).Items).To(HaveLen(3))

			resp = do("PUT", "/api/items/2", fieldRequest{Field: receipt.ItemUnitAmount, Value: "$2.02"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body := decodeReceipt(resp)
			Expect(body.Items[2].UnitAmount).To(Equal("2.02"))
			Expect(body.Totals.Subtotal).To(Equal("10.00"))

			resp = do("DELETE", "/api/items/0", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body = decodeReceipt(resp)
			Expect(body.Items).To(HaveLen(2))
			Expect(body.Totals.Subtotal).To(Equal("2.02"))
		})

		It("should ignore an out of range index", func() {
			resp := do("DELETE", "/api/items/9", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeReceipt(resp).Items).To(HaveLen(2))
		})

		It("should reject an index that is not a number", func() {
			resp := do("PUT", "/api/items/first", fieldRequest{Field: receipt.ItemCode, Value: "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("clear and reset", func() {
		It("should clear the items then restore the sample", func() {
			resp := do("POST", "/api/clear", nil)
			body := decodeReceipt(resp)
			Expect(body.Items).To(BeEmpty())
			Expect(body.Totals.Total).To(Equal("0.00"))
			Expect(body.Totals.ChangeComputed).To(BeFalse())

			resp = do("POST", "/api/reset", nil)
			Expect(decodeReceipt(resp).Items).To(HaveLen(2))
		})
	})

	Describe("logo", func() {
		upload := func(filename string, data []byte) *http.Response {
			var b bytes.Buffer
			writer := multipart.NewWriter(&b)
			part, err := writer.CreateFormFile("file", filename)
			Expect(err).NotTo(HaveOccurred())
			part.Write(data)
			writer.Close()

			resp, err := http.Post(ghttpServer.URL()+"/api/logo", writer.FormDataContentType(), &b)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("should accept an image and show it in the preview", func() {
			resp := upload("logo.png", pngBytes())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeReceipt(resp).HasLogo).To(BeTrue())

			resp, err := http.Get(ghttpServer.URL() + "/api/preview.html")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			html, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(html)).To(ContainSubstring("data:image/png;base64,"))
		})

		It("should reject a file that is not an image", func() {
			resp := upload("notes.txt", []byte("hello"))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})

		It("should reject a form without a file", func() {
			var b bytes.Buffer
			writer := multipart.NewWriter(&b)
			writer.Close()
			resp, err := http.Post(ghttpServer.URL()+"/api/logo", writer.FormDataContentType(), &b)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decodeError(resp)).To(ContainSubstring("file"))
		})

		It("should remove the logo", func() {
			upload("logo.png", pngBytes()).Body.Close()
			resp := do("DELETE", "/api/logo", nil)
			Expect(decodeReceipt(resp).HasLogo).To(BeFalse())
		})
	})

	Describe("preview", func() {
		It("should return the lines with the digest", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/preview")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			var body struct {
				Lines  []layout.Line `json:"lines"`
				Zoom   float64       `json:"zoom"`
				Digest string        `json:"digest"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Lines).To(Equal(session.Document().Lines))
			Expect(body.Digest).To(Equal(session.Document().Digest()))
			Expect(body.Zoom).To(Equal(1.0))
		})

		It("should render plain text at the requested width", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/preview.txt?width=32")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			text, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(text)).To(Equal(session.Document().Text(32)))
		})

		It("should scale the fragment with the zoom", func() {
			resp := postJSON("/api/zoom", map[string]float64{"zoom": 1.5})
			defer resp.Body.Close()
			var body map[string]float64
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body["zoom"]).To(Equal(1.5))

			resp, err := http.Get(ghttpServer.URL() + "/api/preview.html")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			html, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(html)).To(ContainSubstring("scale(1.50)"))
		})
	})

	Describe("handlePrint", func() {
		When("terms are accepted", func() {
			BeforeEach(acceptTerms)

			It("should spool the job and return the print page", func() {
				resp := do("POST", "/api/print", nil)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("text/html; charset=utf-8"))
				Expect(resp.Header.Get("X-Print-Job")).To(Equal("job-7"))

				page, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(spool.files).To(HaveKeyWithValue("job-7.html", page))
			})
		})

		When("terms are not accepted", func() {
			It("should refuse with the terms message", func() {
				resp := do("POST", "/api/print", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(resp)).To(Equal(export.UserMessage(export.ErrTermsNotAccepted)))
				Expect(spool.files).To(BeEmpty())
			})
		})
	})

	Describe("handleExportPDF", func() {
		When("terms are accepted", func() {
			BeforeEach(acceptTerms)

			It("should return a PDF attachment", func() {
				resp := do("POST", "/api/export/pdf", nil)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))
				Expect(resp.Header.Get("Content-Disposition")).To(Equal(`attachment; filename="receipt-20141113-094900.pdf"`))

				data, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(HavePrefix("%PDF"))
				Expect(downloads.files).To(HaveKey("receipt-20141113-094900.pdf"))
			})

			It("should capture at zoom 1 and keep the preview zoom", func() {
				postJSON("/api/zoom", map[string]float64{"zoom": 2}).Body.Close()

				resp := do("POST", "/api/export/pdf", nil)
				resp.Body.Close()
				Expect(capturer.zoomSeen).To(Equal(1.0))
				Expect(session.Zoom()).To(Equal(2.0))
			})
		})

		When("the capture fails", func() {
			BeforeEach(func() {
				acceptTerms()
				capturer.err = errors.New("gpu lost")
			})

			It("should report a server error and restore zoom", func() {
				postJSON("/api/zoom", map[string]float64{"zoom": 0.5}).Body.Close()

				resp := do("POST", "/api/export/pdf", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(decodeError(resp)).To(Equal(export.UserMessage(export.ErrCaptureFailed)))
				Expect(session.Zoom()).To(Equal(0.5))
				Expect(downloads.files).To(BeEmpty())
			})
		})

		When("terms are not accepted", func() {
			It("should refuse and leave the receipt unchanged", func() {
				before, _ := session.Snapshot()
				resp := do("POST", "/api/export/pdf", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()

				after, _ := session.Snapshot()
				Expect(after).To(Equal(before))
				Expect(downloads.files).To(BeEmpty())
			})
		})
	})

	Describe("downloads", func() {
		const name = "receipt-20141113-094900.pdf"

		BeforeEach(func() {
			acceptTerms()
			resp := do("POST", "/api/export/pdf", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
		})

		It("should serve an exported PDF again", func() {
			resp := do("GET", "/api/downloads/"+name, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))
			Expect(resp.Header.Get("Content-Disposition")).To(Equal(`attachment; filename="` + name + `"`))

			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(downloads.files[name]))
		})

		It("should discard a download once it is saved", func() {
			resp := do("DELETE", "/api/downloads/"+name, nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(downloads.files).To(BeEmpty())

			resp = do("GET", "/api/downloads/"+name, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(decodeError(resp)).To(Equal(export.UserMessage(export.ErrArtifactNotFound)))
		})

		It("should report an unknown download as not found", func() {
			resp := do("DELETE", "/api/downloads/other.pdf", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
			Expect(downloads.files).To(HaveKey(name))
		})
	})

	Describe("statusFor", func() {
		DescribeTable("maps errors to statuses",
			func(err error, status int) {
				Expect(statusFor(err)).To(Equal(status))
			},
			Entry("in progress", export.ErrExportInProgress, http.StatusConflict),
			Entry("no render target", export.ErrRenderTargetUnavailable, http.StatusServiceUnavailable),
			Entry("terms", export.ErrTermsNotAccepted, http.StatusBadRequest),
			Entry("logo", export.ErrInvalidLogo, http.StatusBadRequest),
			Entry("encode", export.ErrEncodeFailed, http.StatusInternalServerError),
			Entry("print", export.ErrPrintFailed, http.StatusInternalServerError),
			Entry("missing download", export.ErrArtifactNotFound, http.StatusNotFound),
		)
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			resp := do("OPTIONS", "/api/fields", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})
	})

	Describe("authenticate", func() {
		var result bool

		When("no auth is configured", func() {
			It("should return true", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				result = server.authenticate(req)
				Expect(result).To(BeTrue())
			})
		})

		When("auth is configured", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				server = NewServerWithMux(session, auth, http.NewServeMux())
				setupServer()
			})

			It("should accept valid credentials", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				credentials := base64.StdEncoding.EncodeToString([]byte("user:pass"))
				req.Header.Set("Authorization", "Basic "+credentials)
				result = server.authenticate(req)
				Expect(result).To(BeTrue())
			})

			It("should reject invalid credentials", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				credentials := base64.StdEncoding.EncodeToString([]byte("user:wrong"))
				req.Header.Set("Authorization", "Basic "+credentials)
				result = server.authenticate(req)
				Expect(result).To(BeFalse())
			})

			DescribeTable("should reject near misses",
				func(userpass string) {
					req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
					Expect(err).NotTo(HaveOccurred())
					req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(userpass)))
					Expect(server.authenticate(req)).To(BeFalse())
				},
				Entry("wrong user", "usr:pass"),
				Entry("password prefix", "user:pas"),
				Entry("password with a suffix", "user:password"),
				Entry("empty password", "user:"),
				Entry("swapped", "pass:user"),
			)

			It("should let valid credentials through to the API", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/receipt", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("user", "pass")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(decodeReceipt(resp).Fields[receipt.FieldStoreName]).To(Equal("AutoZone 4129"))
			})

			It("should reject a missing header", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				result = server.authenticate(req)
				Expect(result).To(BeFalse())
			})

			It("should guard the API", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipt")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).NotTo(BeEmpty())
			})
		})
	})
})
