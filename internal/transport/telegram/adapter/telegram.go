package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

type Config struct {
	Token string
	// Timeout bounds every Bot API call. 0 means 15s.
	Timeout time.Duration
	// URL overrides the Bot API base URL (tests, local bot API servers).
	URL string
	// Offline skips the best-effort getMe handshake at construction.
	Offline bool
}

// Adapter is a send-only Telegram client. The bot never consumes updates,
// so no poller is started.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	// The bot is always built offline; reaching Telegram is never a
	// startup requirement.
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.URL,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	if !cfg.Offline {
		a.handshake()
	}
	return a, nil
}

// handshake calls getMe and logs the bot username. Failures are logged only.
func (a *Adapter) handshake() {
	raw, err := a.bot.Raw("getMe", nil)
	if err != nil {
		a.log.Warn("telegram getMe failed; continuing", logx.Err(err))
		return
	}
	var resp struct {
		Result tele.User `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		a.log.Warn("telegram getMe response not understood", logx.Err(err))
		return
	}
	a.bot.Me = &resp.Result
	a.log.Info("telegram bot ready", logx.String("username", resp.Result.Username))
}

// Username returns the bot username learned from getMe, or "".
func (a *Adapter) Username() string {
	if a.bot.Me == nil {
		return ""
	}
	return a.bot.Me.Username
}

const telegramTextLimit = 4000

// splitTelegramText splits long messages into chunks that are safe to send to Telegram.
// It prefers newline boundaries and (best-effort) avoids splitting inside HTML tags when ParseMode is HTML.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		// Prefer splitting on a newline near the end of the window.
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, "HTML") && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}

	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range chunks {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return first, err
			}
		}

		msg, err := a.bot.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	a.log.Debug("message sent", logx.Int64("chat_id", to.ChatID), logx.Int("chunks", len(chunks)))
	return first, nil
}
