package core

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// UploadFile is the file handed to every host of a run.
type UploadFile struct {
	// Path is the file on disk.
	Path string
	// Name is the filename sent to hosts.
	Name string
	// Size is the file size in bytes.
	Size int64
}

// SizeMB returns the size in megabytes (1MB = 1e6 bytes).
func (f UploadFile) SizeMB() float64 {
	return float64(f.Size) / BytesPerMB
}

// Transport performs one upload request against one host.
type Transport struct {
	Client    *http.Client
	Limiter   *rate.Limiter
	UserAgent string
}

// NewTransport returns a transport with a shared rate limiter and no client
// timeout; deadlines come from the caller's context.
func NewTransport() *Transport {
	return &Transport{
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				ForceAttemptHTTP2:   true,
			},
		},
		Limiter:   rate.NewLimiter(rate.Limit(RequestsPerSecond), RequestBurst),
		UserAgent: UserAgent,
	}
}

// Send uploads f to the host described by d and returns the link it answers
// with. Files the host would refuse are skipped without any network action.
func (t *Transport) Send(ctx context.Context, d HostDescriptor, f UploadFile) (string, error) {
	if reason := skipReason(d, f); reason != "" {
		return "", &SkipError{Reason: reason}
	}

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}

	req, err := t.newRequest(ctx, d, f)
	if err != nil {
		return "", &TransportError{Host: d.Name, Kind: Generic, Err: err}
	}

	log.WithFields(log.Fields{"host": d.Name, "method": req.Method, "url": req.URL.String()}).Debug("Uploading")
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &TransportError{Host: d.Name, Kind: Generic, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return "", &TransportError{Host: d.Name, Kind: Generic, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode == http.StatusBadGateway {
		return "", &TransportError{Host: d.Name, Kind: BadGateway, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{Host: d.Name, Kind: Generic, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(body)), 80))}
	}

	link, err := ExtractLink(ParseResponse(body), d)
	if err != nil {
		return "", &TransportError{Host: d.Name, Kind: Generic, Err: err}
	}
	if err := classifyLink(d.Name, link); err != nil {
		return "", err
	}
	if err := ValidateLink(link); err != nil {
		return "", &TransportError{Host: d.Name, Kind: Generic, Err: err}
	}
	return link, nil
}

// skipReason reports why d would refuse f, or "" when it would not.
func skipReason(d HostDescriptor, f UploadFile) string {
	if f.SizeMB() > d.SizeLimitMB {
		return fmt.Sprintf("%.2fMB exceeds the %gMB limit", f.SizeMB(), d.SizeLimitMB)
	}
	if len(d.Accept) > 0 {
		name := f.Name
		if name == "" {
			name = f.Path
		}
		// Unknown types are let through.
		if typ := mime.TypeByExtension(filepath.Ext(name)); typ != "" {
			top := strings.SplitN(typ, "/", 2)[0]
			accepted := false
			for _, a := range d.Accept {
				if strings.EqualFold(a, top) {
					accepted = true
					break
				}
			}
			if !accepted {
				return fmt.Sprintf("%s files are not accepted", top)
			}
		}
	}
	return ""
}

func (t *Transport) newRequest(ctx context.Context, d HostDescriptor, f UploadFile) (*http.Request, error) {
	name := f.Name
	if name == "" {
		name = filepath.Base(f.Path)
	}

	var req *http.Request
	if d.Field == "" {
		file, err := os.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		target := strings.TrimRight(d.Server, "/") + "/" + name
		req, err = http.NewRequestWithContext(ctx, d.Method, target, file)
		if err != nil {
			file.Close()
			return nil, err
		}
		req.ContentLength = f.Size
		req.Header.Set("Content-Type", "application/octet-stream")
	} else {
		pr, pw := io.Pipe()
		writer := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(writeMultipart(writer, d, f.Path, name))
		}()
		var err error
		req, err = http.NewRequestWithContext(ctx, d.Method, d.Server, pr)
		if err != nil {
			pr.Close()
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
	}

	req.Header.Set("User-Agent", t.UserAgent)
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// writeMultipart streams the form fields, then the file part.
func writeMultipart(writer *multipart.Writer, d HostDescriptor, path, name string) error {
	keys := make([]string, 0, len(d.Form))
	for k := range d.Form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writer.WriteField(k, d.Form[k]); err != nil {
			return err
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile(d.Field, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return writer.Close()
}
