// Package gmail wraps the Gmail API for the four operations a run needs:
// searching the inbox, fetching messages, batch-marking them processed and
// sending replies.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/coachmail/coachmail/internal/retry"
	"github.com/coachmail/coachmail/pkg/logging"
)

const user = "me"

// Client is a thin wrapper over the Gmail service with a shared retry
// policy.
type Client struct {
	svc    *gmailv1.Service
	policy retry.Policy
	loc    *time.Location
	logger *logging.Logger
}

// NewClient builds a Client over an authenticated service.
func NewClient(svc *gmailv1.Service, policy retry.Policy, loc *time.Location, logger *logging.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{svc: svc, policy: policy, loc: loc, logger: logger}
}

// NewService authenticates against Gmail using the OAuth client secret at
// credentialsPath and the cached token at tokenPath. When no valid token is
// cached it runs a loopback browser flow and saves the result.
func NewService(ctx context.Context, credentialsPath, tokenPath string) (*gmailv1.Service, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("gmail: read credentials at %s: %w", credentialsPath, err)
	}
	cfg, err := google.ConfigFromJSON(b,
		gmailv1.GmailModifyScope,
		gmailv1.GmailSendScope,
	)
	if err != nil {
		return nil, fmt.Errorf("gmail: parse oauth config: %w", err)
	}

	tok, err := readToken(tokenPath)
	if err != nil {
		tok, err = tokenFromWeb(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenPath, tok); err != nil {
			return nil, err
		}
	}

	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("gmail: create service: %w", err)
	}
	return svc, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("gmail: create token dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("gmail: create token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("gmail: write token: %w", err)
	}
	return nil
}

// tokenFromWeb runs a loopback server on a random port, prints the consent
// URL and waits for the redirect carrying the auth code.
func tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("gmail: listen on loopback: %w", err)
	}
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port)

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintln(os.Stderr, "Open this URL in your browser to authorize the account:")
	fmt.Fprintln(os.Stderr, authURL)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("gmail: token exchange: %w", err)
		}
		return tok, nil
	}
}

// Search lists inbox message IDs matching the Gmail query, following
// result pages until exhausted.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		page, err := retry.DoValue(ctx, c.policy, "gmail search", func() (*gmailv1.ListMessagesResponse, error) {
			call := c.svc.Users.Messages.List(user).Q(query).LabelIds("INBOX").MaxResults(100)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			return call.Context(ctx).Do()
		})
		if err != nil {
			return nil, fmt.Errorf("gmail: search %q: %w", query, err)
		}
		for _, m := range page.Messages {
			ids = append(ids, m.Id)
		}
		if page.NextPageToken == "" {
			return ids, nil
		}
		pageToken = page.NextPageToken
	}
}

// Fetch retrieves the full message and reduces it to an InboundMessage.
func (c *Client) Fetch(ctx context.Context, id string) (*InboundMessage, error) {
	msg, err := retry.DoValue(ctx, c.policy, "gmail fetch", func() (*gmailv1.Message, error) {
		return c.svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("gmail: fetch %s: %w", id, err)
	}
	return fromAPIMessage(msg, c.loc)
}

// BatchMarkProcessed clears the UNREAD label from every listed message in
// one call, the all-or-nothing mark of a fully handled batch.
func (c *Client) BatchMarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := c.policy.Do(ctx, "gmail batch modify", func() error {
		return c.svc.Users.Messages.BatchModify(user, &gmailv1.BatchModifyMessagesRequest{
			Ids:            ids,
			RemoveLabelIds: []string{"UNREAD"},
		}).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("gmail: batch mark processed: %w", err)
	}
	return nil
}

// Send delivers a plain-text message. A non-empty threadID keeps the reply
// in the original conversation.
func (c *Client) Send(ctx context.Context, out Outbound) error {
	raw := base64.URLEncoding.EncodeToString(out.rfc822())
	msg := &gmailv1.Message{Raw: raw, ThreadId: out.ThreadID}
	err := c.policy.Do(ctx, "gmail send", func() error {
		_, err := c.svc.Users.Messages.Send(user, msg).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("gmail: send to %s: %w", out.To, err)
	}
	c.logger.Info("sent message", "to", out.To, "subject", out.Subject)
	return nil
}
