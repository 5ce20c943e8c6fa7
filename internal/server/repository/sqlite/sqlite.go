package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/otpstore"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/repository"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

type Repository struct {
	db *sql.DB
}

func New(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			full_name TEXT NOT NULL,
			role TEXT NOT NULL,
			password_hash BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			token_hash TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id)
		);
		CREATE TABLE IF NOT EXISTS meetings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT UNIQUE NOT NULL,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			meeting_type TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			duration_minutes INTEGER NOT NULL,
			location TEXT NOT NULL,
			recipient_emails TEXT NOT NULL,
			company_participants TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL,
			is_verified INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			FOREIGN KEY(owner_id) REFERENCES users(id)
		);
		CREATE TABLE IF NOT EXISTS photos (
			id TEXT PRIMARY KEY,
			meeting_uid TEXT NOT NULL,
			file TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size INTEGER NOT NULL,
			uploaded_at TIMESTAMP NOT NULL,
			FOREIGN KEY(meeting_uid) REFERENCES meetings(uid)
		);
		CREATE TABLE IF NOT EXISTS otp_codes (
			meeting_uid TEXT PRIMARY KEY,
			code_hash TEXT NOT NULL,
			issued_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		);
	`); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error { return r.db.Close() }

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Auth

func (r *Repository) CreateUser(ctx context.Context, u models.User, passwordHash []byte) (models.User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	if u.Role == "" {
		u.Role = "user"
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO users(id,username,email,full_name,role,password_hash,created_at) VALUES(?,?,?,?,?,?,?)`,
		u.ID, u.Username, u.Email, u.FullName, u.Role, passwordHash, u.CreatedAt)
	if isUniqueViolation(err) {
		return models.User{}, repository.ErrConflict
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (models.User, []byte, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id,username,email,full_name,role,created_at,password_hash FROM users WHERE username = ?`, username)
	var u models.User
	var hash []byte
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.CreatedAt, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, nil, repository.ErrNotFound
		}
		return models.User{}, nil, err
	}
	return u, hash, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id,username,email,full_name,role,created_at FROM users WHERE id = ?`, id)
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, repository.ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// Refresh tokens are stored by hash only.

func (r *Repository) CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO refresh_tokens(token_hash, user_id, expires_at, created_at) VALUES(?,?,?,?)`, tokenHash, userID, expiresAt.UTC(), time.Now().UTC())
	return err
}

func (r *Repository) GetRefreshToken(ctx context.Context, tokenHash string) (userID string, expiresAt time.Time, err error) {
	row := r.db.QueryRowContext(ctx, `SELECT user_id, expires_at FROM refresh_tokens WHERE token_hash = ?`, tokenHash)
	err = row.Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = repository.ErrNotFound
	}
	return
}

func (r *Repository) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = ?`, tokenHash)
	return err
}

// Meetings

const meetingColumns = `id, uid, title, meeting_type, start_time, duration_minutes, location, recipient_emails,
	company_participants, description, status, is_verified, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMeeting(s scanner) (models.Meeting, error) {
	var m models.Meeting
	var recipients, status string
	err := s.Scan(&m.ID, &m.UID, &m.Title, &m.MeetingType, &m.StartTime, &m.DurationMinutes, &m.Location, &recipients,
		&m.CompanyParticipants, &m.Description, &status, &m.IsVerified, &m.CreatedAt)
	if err != nil {
		return models.Meeting{}, err
	}
	m.Status = models.MeetingStatus(status)
	if recipients != "" {
		_ = json.Unmarshal([]byte(recipients), &m.RecipientEmails)
	}
	m.Photos = []models.Photo{}
	return m, nil
}

func (r *Repository) CreateMeeting(ctx context.Context, ownerID string, m models.Meeting) (models.Meeting, error) {
	if m.UID == "" {
		m.UID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	if m.Status == "" {
		m.Status = models.StatusScheduled
	}
	if m.RecipientEmails == nil {
		m.RecipientEmails = []string{}
	}
	recipients, _ := json.Marshal(m.RecipientEmails)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO meetings(uid, owner_id, title, meeting_type, start_time, duration_minutes, location, recipient_emails,
			company_participants, description, status, is_verified, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.UID, ownerID, m.Title, m.MeetingType, m.StartTime.UTC(), m.DurationMinutes, m.Location, string(recipients),
		m.CompanyParticipants, m.Description, string(m.Status), m.IsVerified, now, now)
	if err != nil {
		return models.Meeting{}, err
	}
	m.ID, _ = res.LastInsertId()
	m.Photos = []models.Photo{}
	return m, nil
}

func (r *Repository) ListMeetings(ctx context.Context, ownerID string) ([]models.Meeting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE owner_id = ? ORDER BY start_time DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Meeting{}
	byUID := map[string]int{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		byUID[m.UID] = len(out)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	photos, err := r.db.QueryContext(ctx, `
		SELECT p.meeting_uid, p.id, p.file, p.content_type, p.size, p.uploaded_at
		FROM photos p JOIN meetings m ON m.uid = p.meeting_uid
		WHERE m.owner_id = ? ORDER BY p.uploaded_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer photos.Close()
	for photos.Next() {
		var uid string
		var p models.Photo
		if err := photos.Scan(&uid, &p.ID, &p.File, &p.ContentType, &p.Size, &p.UploadedAt); err != nil {
			return nil, err
		}
		if i, ok := byUID[uid]; ok {
			out[i].Photos = append(out[i].Photos, p)
		}
	}
	return out, photos.Err()
}

func (r *Repository) GetMeeting(ctx context.Context, ownerID, uid string) (models.Meeting, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE owner_id = ? AND uid = ?`, ownerID, uid)
	m, err := scanMeeting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Meeting{}, repository.ErrNotFound
		}
		return models.Meeting{}, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, file, content_type, size, uploaded_at FROM photos WHERE meeting_uid = ? ORDER BY uploaded_at`, uid)
	if err != nil {
		return models.Meeting{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.File, &p.ContentType, &p.Size, &p.UploadedAt); err != nil {
			return models.Meeting{}, err
		}
		m.Photos = append(m.Photos, p)
	}
	return m, rows.Err()
}

// UpdateMeetingStatus moves a meeting from one status to another only if it
// still has the expected status.
func (r *Repository) UpdateMeetingStatus(ctx context.Context, ownerID, uid string, from, to models.MeetingStatus, verified bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE meetings SET status=?, is_verified=?, updated_at=? WHERE owner_id=? AND uid=? AND status=?`,
		string(to), verified, time.Now().UTC(), ownerID, uid, string(from))
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return repository.ErrStatusConflict
	}
	return nil
}

func (r *Repository) DeleteMeeting(ctx context.Context, ownerID, uid string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `DELETE FROM meetings WHERE owner_id = ? AND uid = ?`, ownerID, uid)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return repository.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE meeting_uid = ?`, uid); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM otp_codes WHERE meeting_uid = ?`, uid); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) AddPhoto(ctx context.Context, meetingUID string, p models.Photo) (models.Photo, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.UploadedAt.IsZero() {
		p.UploadedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO photos(id, meeting_uid, file, content_type, size, uploaded_at) VALUES(?,?,?,?,?,?)`,
		p.ID, meetingUID, p.File, p.ContentType, p.Size, p.UploadedAt)
	if err != nil {
		return models.Photo{}, err
	}
	return p, nil
}

// OTP codes (otpstore.Store, otpstore.Sweeper)

func (r *Repository) SaveOTP(ctx context.Context, meetingUID string, c otpstore.Code) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO otp_codes(meeting_uid, code_hash, issued_at, expires_at) VALUES(?,?,?,?)
		ON CONFLICT(meeting_uid) DO UPDATE SET
			code_hash=excluded.code_hash,
			issued_at=excluded.issued_at,
			expires_at=excluded.expires_at
	`, meetingUID, c.Hash, c.IssuedAt.UTC(), c.ExpiresAt.UTC())
	return err
}

func (r *Repository) GetOTP(ctx context.Context, meetingUID string) (otpstore.Code, error) {
	row := r.db.QueryRowContext(ctx, `SELECT code_hash, issued_at, expires_at FROM otp_codes WHERE meeting_uid = ?`, meetingUID)
	var c otpstore.Code
	if err := row.Scan(&c.Hash, &c.IssuedAt, &c.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return otpstore.Code{}, otpstore.ErrNotFound
		}
		return otpstore.Code{}, err
	}
	return c, nil
}

func (r *Repository) DeleteOTP(ctx context.Context, meetingUID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE meeting_uid = ?`, meetingUID)
	return err
}

func (r *Repository) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
