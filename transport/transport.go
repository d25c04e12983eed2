// Package transport implements a minimal git smart-v2 HTTP client: enough
// to discover refs and fetch a packfile for everything they point at.
// Grounded on the request/response shape exercised by the nanogit and
// gg-git packfile-client examples in the retrieval pack, reshaped behind
// a plain net/http.Client the way both of those do it.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/pktline"
	"golang.org/x/xerrors"
)

const gitProtocolHeader = "version=2"

// ErrNoPackfile is returned by Fetch when the server's response never
// produced a "packfile" section.
var ErrNoPackfile = errors.New("server did not return a packfile")

// ErrUnexpectedStatus is returned when the server responds with a non-2xx
// HTTP status code.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Ref is a single reference as advertised by ls-refs.
type Ref struct {
	Name string
	Oid  ginternals.Oid
}

// Client talks protocol-v2 smart HTTP to a single repository URL, the
// same way `git fetch` talks to a `<url>/info/refs?service=git-upload-pack`
// and `<url>/git-upload-pack` pair of endpoints.
type Client struct {
	// BaseURL is the repository URL, without a trailing slash
	// (e.g. "https://example.com/org/repo.git").
	BaseURL string
	// HTTPClient is used to issue every request. Defaults to
	// http.DefaultClient when nil.
	HTTPClient *http.Client
}

// NewClient returns a Client targeting baseURL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// capabilities issues the initial GET against info/refs, confirming the
// server understands protocol v2. Real clients also parse the advertised
// capability list here; we only need to confirm the version line, since
// spec scope never negotiates optional capabilities beyond what's always
// sent (command=ls-refs/fetch).
func (c *Client) capabilities(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/info/refs?service=git-upload-pack", nil)
	if err != nil {
		return xerrors.Errorf("could not build info/refs request: %w", err)
	}
	req.Header.Set("Git-Protocol", gitProtocolHeader)

	res, err := c.httpClient().Do(req)
	if err != nil {
		return xerrors.Errorf("could not reach %s: %w", c.BaseURL, err)
	}
	defer res.Body.Close() //nolint:errcheck // best effort

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return xerrors.Errorf("%s: %w (%d)", c.BaseURL, ErrUnexpectedStatus, res.StatusCode)
	}

	lines, err := pktline.ReadLines(res.Body)
	if err != nil {
		return xerrors.Errorf("could not parse capability advertisement: %w", err)
	}

	for _, l := range lines {
		if string(bytes.TrimRight(l.Payload, "\n")) == "version 2" {
			return nil
		}
	}
	return xerrors.New("server does not advertise protocol version 2")
}

// post sends a protocol-v2 command to the git-upload-pack endpoint and
// returns the decoded response lines.
func (c *Client) post(ctx context.Context, command string, args ...string) ([]pktline.Line, error) {
	var body bytes.Buffer
	if err := pktline.EncodeString(&body, "command="+command+"\n"); err != nil {
		return nil, err
	}
	if err := pktline.EncodeString(&body, "agent=gitkit\n"); err != nil {
		return nil, err
	}
	if err := pktline.EncodeString(&body, "object-format=sha1\n"); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		if err := pktline.WriteDelim(&body); err != nil {
			return nil, err
		}
		for _, a := range args {
			if err := pktline.EncodeString(&body, a); err != nil {
				return nil, err
			}
		}
	}
	if err := pktline.WriteFlush(&body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/git-upload-pack", bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, xerrors.Errorf("could not build %s request: %w", command, err)
	}
	req.Header.Set("Git-Protocol", gitProtocolHeader)
	req.Header.Set("Content-Type", "application/x-git-upload-pack-request")

	res, err := c.httpClient().Do(req)
	if err != nil {
		return nil, xerrors.Errorf("could not reach %s: %w", c.BaseURL, err)
	}
	defer res.Body.Close() //nolint:errcheck // best effort

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, xerrors.Errorf("%s: %w (%d)", c.BaseURL, ErrUnexpectedStatus, res.StatusCode)
	}

	raw, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, xerrors.Errorf("could not read %s response: %w", command, err)
	}

	return pktline.ReadLines(bytes.NewReader(raw))
}

// ListRefs returns every reference the server advertises, equivalent to
// `git ls-remote`.
func (c *Client) ListRefs(ctx context.Context) ([]Ref, error) {
	if err := c.capabilities(ctx); err != nil {
		return nil, err
	}

	lines, err := c.post(ctx, "ls-refs", "unborn\n")
	if err != nil {
		return nil, xerrors.Errorf("ls-refs failed: %w", err)
	}

	refs := make([]Ref, 0, len(lines))
	for _, l := range lines {
		if l.IsFlush || l.IsDelim || l.IsResponseEnd {
			continue
		}
		line := strings.TrimRight(string(l.Payload), "\n")
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		oid, err := ginternals.NewOidFromStr(parts[0])
		if err != nil {
			continue
		}
		refs = append(refs, Ref{Name: parts[1], Oid: oid})
	}
	return refs, nil
}

// Fetch requests a packfile containing wants and everything they
// transitively reach, equivalent to `git fetch` with no existing history
// to negotiate against (a clone's first fetch). No "have" lines are ever
// sent, matching spec scope's "fetch everything advertised" non-goal on
// ref-spec negotiation.
func (c *Client) Fetch(ctx context.Context, wants []ginternals.Oid) (io.Reader, error) {
	if len(wants) == 0 {
		return nil, xerrors.New("at least one want is required")
	}

	args := make([]string, 0, len(wants)+1)
	for _, w := range wants {
		args = append(args, "want "+w.String()+"\n")
	}
	args = append(args, "done\n")

	lines, err := c.post(ctx, "fetch", args...)
	if err != nil {
		return nil, xerrors.Errorf("fetch failed: %w", err)
	}

	pack, err := demuxPackfile(lines)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(pack), nil
}

// demuxPackfile extracts the raw packfile bytes out of a fetch response.
// After the "packfile" marker line, every following pkt-line payload is
// prefixed by one band byte: 1 is pack data, 2 is human-readable progress,
// 3 is a fatal error message. This framing is unconditional for the
// fetch command's packfile section (unlike protocol v0's optional
// side-band capability negotiation).
func demuxPackfile(lines []pktline.Line) ([]byte, error) {
	var pack bytes.Buffer
	inPackfile := false

	for _, l := range lines {
		if l.IsFlush {
			break
		}
		if l.IsDelim || l.IsResponseEnd {
			continue
		}
		if !inPackfile {
			if strings.TrimRight(string(l.Payload), "\n") == "packfile" {
				inPackfile = true
			}
			continue
		}
		if len(l.Payload) == 0 {
			continue
		}
		band, data := l.Payload[0], l.Payload[1:]
		switch band {
		case 1:
			pack.Write(data)
		case 2:
			// progress output, nothing to do with it
		case 3:
			return nil, xerrors.Errorf("server reported an error: %s", strings.TrimRight(string(data), "\n"))
		}
	}

	if pack.Len() == 0 {
		return nil, ErrNoPackfile
	}
	return pack.Bytes(), nil
}
