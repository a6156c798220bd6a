package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Download is a fetched export file.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Export downloads a CSV report. The response must be text/csv or
// application/octet-stream; anything else is treated as an error.
func (c *Client) Export(ctx context.Context, reportType string, days int) (*Download, error) {
	p := "/export/" + url.PathEscape(reportType)
	if days > 0 {
		p += "?days=" + strconv.Itoa(days)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+p, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || (mt != "text/csv" && mt != "application/octet-stream") {
		return nil, fmt.Errorf("client: export %s: unexpected content type %q", reportType, ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: export %s: %w", reportType, err)
	}
	return &Download{Filename: c.filename(resp.Header.Get("Content-Disposition"), reportType), ContentType: mt, Data: data}, nil
}

// filename prefers the server's attachment name and falls back to "<type>-<date>.csv".
func (c *Client) filename(disposition, reportType string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := path.Base(params["filename"]); !strings.HasPrefix(name, ".") && name != "/" {
			return name
		}
	}
	return fmt.Sprintf("%s-%s.csv", reportType, c.now().Format("2006-01-02"))
}
