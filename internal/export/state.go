package export

import "errors"

// State is a step of an export operation
type State string

const (
	Idle           State = "idle"
	Rendering      State = "rendering"
	Dispatched     State = "dispatched"
	CapturePending State = "capture_pending"
	Captured       State = "captured"
	Encoded        State = "encoded"
	Downloaded     State = "downloaded"
)

var (
	// ErrTermsNotAccepted is returned when export is requested before the terms are accepted
	ErrTermsNotAccepted = errors.New("terms not accepted")
	// ErrInvalidLogo is returned when the receipt carries a logo that is not a normalized image
	ErrInvalidLogo = errors.New("invalid logo image")
	// ErrRenderTargetUnavailable is returned when no preview is mounted
	ErrRenderTargetUnavailable = errors.New("render target unavailable")
	// ErrExportInProgress is returned when another export has not finished
	ErrExportInProgress = errors.New("export already in progress")
	// ErrCaptureFailed wraps rasterization failures
	ErrCaptureFailed = errors.New("capture failed")
	// ErrEncodeFailed wraps PDF encoding failures
	ErrEncodeFailed = errors.New("encoding failed")
	// ErrPrintFailed wraps print document and print facility failures
	ErrPrintFailed = errors.New("print failed")
	// ErrDownloadFailed wraps failures to store the artifact
	ErrDownloadFailed = errors.New("download failed")
	// ErrArtifactNotFound is returned when a stored download does not exist
	ErrArtifactNotFound = errors.New("artifact not found")
)

// UserMessage returns the message shown to the user for an export error
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTermsNotAccepted):
		return "Please accept the terms before printing or downloading the receipt."
	case errors.Is(err, ErrInvalidLogo):
		return "The logo must be a JPEG, PNG, GIF or HEIC image. Remove it or upload another file."
	case errors.Is(err, ErrRenderTargetUnavailable):
		return "The receipt preview is not ready yet. Try again in a moment."
	case errors.Is(err, ErrExportInProgress):
		return "An export is already running. Wait for it to finish."
	case errors.Is(err, ErrCaptureFailed):
		return "Could not capture the receipt preview. Please try again."
	case errors.Is(err, ErrEncodeFailed):
		return "Could not create the PDF. Please try again."
	case errors.Is(err, ErrPrintFailed):
		return "Could not send the receipt to the printer."
	case errors.Is(err, ErrDownloadFailed):
		return "Could not save the PDF download."
	case errors.Is(err, ErrArtifactNotFound):
		return "That download is no longer available. Export the receipt again."
	default:
		return "Something went wrong exporting the receipt."
	}
}
