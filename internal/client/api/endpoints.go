package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

func meetingPath(uid, action string) string {
	p := "/api/meet/" + url.PathEscape(uid) + "/"
	if action != "" {
		p += action + "/"
	}
	return p
}

// Auth

func (c *Client) Login(ctx context.Context, username, password string) (models.TokenResponse, error) {
	var out models.TokenResponse
	err := c.postJSON(ctx, "/api/auth/login/", models.LoginRequest{Username: username, Password: password}, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	var out models.ProfileResponse
	err := c.postJSON(ctx, "/api/auth/create/", req, &out)
	return out.Data, err
}

func (c *Client) Profile(ctx context.Context) (models.User, error) {
	var out models.ProfileResponse
	err := c.getJSON(ctx, "/api/auth/profile/", &out)
	return out.Data, err
}

// Meetings

func (c *Client) ListMeetings(ctx context.Context) ([]models.Meeting, error) {
	var out []models.Meeting
	err := c.getJSON(ctx, "/api/meet/", &out)
	return out, err
}

func (c *Client) GetMeeting(ctx context.Context, uid string) (models.Meeting, error) {
	var out models.Meeting
	err := c.getJSON(ctx, meetingPath(uid, ""), &out)
	return out, err
}

func (c *Client) CreateMeeting(ctx context.Context, req models.CreateMeetingRequest) (models.Meeting, error) {
	var out models.Meeting
	err := c.postJSON(ctx, "/api/meet/", req, &out)
	return out, err
}

func (c *Client) DeleteMeeting(ctx context.Context, uid string) error {
	return c.do(ctx, http.MethodDelete, meetingPath(uid, ""), nil, "", nil)
}

func (c *Client) MarkInProgress(ctx context.Context, uid string) error {
	return c.postJSON(ctx, meetingPath(uid, "mark-in-progress"), struct{}{}, nil)
}

// MarkCompleted asks the service to verify otp and close the meeting.
func (c *Client) MarkCompleted(ctx context.Context, uid, otp string) error {
	return c.postJSON(ctx, meetingPath(uid, "mark-completed"), models.MarkCompletedRequest{OTPCode: otp}, nil)
}

func (c *Client) GenerateOTP(ctx context.Context, uid string) error {
	return c.postJSON(ctx, meetingPath(uid, "generate-otp"), struct{}{}, nil)
}

func (c *Client) ResendOTP(ctx context.Context, uid string) error {
	return c.postJSON(ctx, meetingPath(uid, "resend-otp"), struct{}{}, nil)
}

func (c *Client) MarkCancelled(ctx context.Context, uid string) error {
	return c.postJSON(ctx, meetingPath(uid, "mark-cancelled"), struct{}{}, nil)
}

// UploadPhoto sends data as the multipart field "file".
func (c *Client) UploadPhoto(ctx context.Context, uid, fileName, contentType string, data []byte) (models.Photo, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return models.Photo{}, err
	}
	if _, err := part.Write(data); err != nil {
		return models.Photo{}, err
	}
	if err := mw.Close(); err != nil {
		return models.Photo{}, err
	}
	var out models.Photo
	err = c.do(ctx, http.MethodPost, meetingPath(uid, "upload-photo"), &buf, mw.FormDataContentType(), &out)
	return out, err
}
