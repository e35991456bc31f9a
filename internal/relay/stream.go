package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const doneMarker = "[DONE]"

type StreamStats struct {
	Forwarded int
	Skipped   int
	Done      bool
	// Content: текст ответа, собранный из корректных фрагментов.
	Content string
}

type fragment struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Content string `json:"content"`
}

// Stream передает поток событий источника в dst по мере поступления.
//
// Кадрирование SSE сохраняется, буферизуется только текущее событие.
// Строки data одного события склеиваются через \n и разбираются вместе.
// Событие, данные которого не разбираются как JSON-объект, пропускается,
// поток при этом продолжается. После маркера [DONE] чтение прекращается.
func Stream(ctx context.Context, dst io.Writer, src io.Reader, logger *slog.Logger) (StreamStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		stats   StreamStats
		content strings.Builder
		event   bytes.Buffer
		data    []string
	)

	flusher, _ := dst.(http.Flusher)
	reader := bufio.NewReader(src)

	emit := func() error {
		defer func() {
			event.Reset()
			data = data[:0]
		}()

		if event.Len() == 0 {
			return nil
		}

		if len(data) > 0 {
			payload := strings.Join(data, "\n")
			if strings.TrimSpace(payload) == doneMarker {
				stats.Done = true
			} else {
				var parsed fragment
				if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
					stats.Skipped++
					logger.Debug("relay skipped malformed fragment", slog.String("error", err.Error()))
					return nil
				}
				stats.Forwarded++
				if len(parsed.Choices) > 0 {
					content.WriteString(parsed.Choices[0].Delta.Content)
				} else {
					content.WriteString(parsed.Content)
				}
			}
		}

		event.WriteByte('\n')
		if _, err := dst.Write(event.Bytes()); err != nil {
			return fmt.Errorf("relay: write fragment: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			stats.Content = content.String()
			return stats, err
		}

		line, readErr := reader.ReadString('\n')
		if line != "" {
			trimmed := strings.TrimRight(line, "\r\n")

			switch {
			case trimmed == "":
				if err := emit(); err != nil {
					stats.Content = content.String()
					return stats, err
				}
				if stats.Done {
					stats.Content = content.String()
					return stats, nil
				}
			case strings.HasPrefix(trimmed, "data:"):
				value := strings.TrimPrefix(trimmed, "data:")
				data = append(data, strings.TrimPrefix(value, " "))
				event.WriteString(trimmed + "\n")
			default:
				// Комментарии и поля event/id/retry передаются как есть.
				event.WriteString(trimmed + "\n")
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				err := emit()
				stats.Content = content.String()
				return stats, err
			}
			stats.Content = content.String()
			return stats, fmt.Errorf("relay: read upstream: %w", readErr)
		}
	}
}
