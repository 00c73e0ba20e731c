// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendRecommendations sends the ranked purchase candidates from one scan cycle.
func (c *Client) SendRecommendations(recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	return c.sendMarkdownV2(formatRecommendations(recs))
}

// formatRecommendations formats recommendations into a Telegram MarkdownV2 message.
func formatRecommendations(recs []models.Recommendation) string {
	var b strings.Builder
	b.WriteString("💰 *Auction House Deals*\n\n")

	dateStr := escapeMarkdownV2(time.UnixMilli(recs[0].TS).UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "📅 Detected: %s\n\n", dateStr)

	for i, rec := range recs {
		fmt.Fprintf(&b, "%d\\. *%s*\n", i+1, escapeMarkdownV2(rec.Item.Label()))

		priceStr := escapeMarkdownV2(fmt.Sprintf("%.0f", rec.Price))
		medianStr := escapeMarkdownV2(fmt.Sprintf("%.0f", rec.Median))
		discountStr := escapeMarkdownV2(fmt.Sprintf("%.0f%%", rec.DiscountPct))
		fmt.Fprintf(&b, "   🏷 %s \\(median %s, %s off\\)\n", priceStr, medianStr, discountStr)

		profitStr := escapeMarkdownV2(fmt.Sprintf("%.0f", rec.Profit))
		priorityStr := escapeMarkdownV2(fmt.Sprintf("%.0f", rec.Priority))
		fmt.Fprintf(&b, "   📊 profit %s, priority %s", profitStr, priorityStr)

		if rec.SellerName != nil && *rec.SellerName != "" {
			fmt.Fprintf(&b, ", seller %s", escapeMarkdownV2(*rec.SellerName))
		}
		b.WriteString("\n\n")
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
