package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"moob/models"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// SendMessage posts the composer payload as multipart form data.
func (c *Client) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	body, contentType, err := encodeSendForm(req)
	if err != nil {
		return nil, err
	}

	var resp models.SendMessageResponse
	if err := c.do(ctx, http.MethodPost, pathSend, nil, body, contentType, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SentMessages fetches one page of the user's sent messages.
func (c *Client) SentMessages(ctx context.Context, offset, limit int) (*models.SentMessagesResponse, error) {
	if offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0, got %d", offset)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0, got %d", limit)
	}

	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	var resp models.SentMessagesResponse
	if err := c.getJSON(ctx, pathSent, query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats fetches the user's aggregate message statistics.
func (c *Client) Stats(ctx context.Context) (*models.MessageStatsResponse, error) {
	var resp models.MessageStatsResponse
	if err := c.getJSON(ctx, pathStats, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func encodeSendForm(req models.SendMessageRequest) (*bytes.Buffer, string, error) {
	recipients := req.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	encodedRecipients, err := json.Marshal(recipients)
	if err != nil {
		return nil, "", fmt.Errorf("encode recipients: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := [][2]string{
		{"platform", string(req.Platform)},
		{"content", req.Content},
		{"recipients", string(encodedRecipients)},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", field[0], err)
		}
	}

	if req.File != nil {
		if req.File.Name == "" {
			return nil, "", errors.New("attachment name is required")
		}
		mediaType := req.File.MediaType
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(req.File.Name)))
		header.Set("Content-Type", mediaType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(req.File.Data); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
