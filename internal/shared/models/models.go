package models

import "time"

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by login and refresh. Data carries the profile on login.
type TokenResponse struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh,omitempty"`
	Data         *User  `json:"data,omitempty"`
}

type ProfileResponse struct {
	Data User `json:"data"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

const (
	MeetingTypeOnline   = "online"
	MeetingTypeInPerson = "in-person"
)

// Meeting is the record mirrored between the service and the client engine.
// UID is the stable identity; ID is only a list key assigned by storage.
type Meeting struct {
	ID                  int64         `json:"id"`
	UID                 string        `json:"uid"`
	Title               string        `json:"title"`
	MeetingType         string        `json:"meeting_type"`
	StartTime           time.Time     `json:"start_time"`
	DurationMinutes     int           `json:"duration_minutes"`
	Location            string        `json:"location"`
	RecipientEmails     []string      `json:"recipient_emails"`
	CompanyParticipants string        `json:"company_participants,omitempty"`
	Description         string        `json:"description"`
	Status              MeetingStatus `json:"status"`
	IsVerified          bool          `json:"is_verified"`
	Photos              []Photo       `json:"photos"`
	CreatedAt           time.Time     `json:"created_at"`
}

// HasPhoto reports whether the meeting already carries stored evidence.
func (m Meeting) HasPhoto() bool {
	return len(m.Photos) > 0
}

// EndTime is StartTime plus the scheduled duration.
func (m Meeting) EndTime() time.Time {
	return m.StartTime.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

type Photo struct {
	ID          string    `json:"id"`
	File        string    `json:"file"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type CreateMeetingRequest struct {
	Title               string    `json:"title"`
	MeetingType         string    `json:"meeting_type"`
	StartTime           time.Time `json:"start_time"`
	DurationMinutes     int       `json:"duration_minutes"`
	Location            string    `json:"location"`
	RecipientEmails     []string  `json:"recipient_emails"`
	CompanyParticipants string    `json:"company_participants,omitempty"`
	Description         string    `json:"description"`
}

type MarkCompletedRequest struct {
	OTPCode string `json:"otp_code"`
}
