package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3" // SQLite driver
)

// timeLayout keeps stored timestamps fixed-width so they compare lexically.
const timeLayout = "2006-01-02T15:04:05.000Z"

type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewSQLiteStoreFromDB wraps an already opened handle without touching the schema.
func NewSQLiteStoreFromDB(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        username TEXT UNIQUE NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        first_name TEXT NOT NULL,
        last_name TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'admin')),
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        is_banned BOOLEAN NOT NULL DEFAULT FALSE,
        ban_reason TEXT NOT NULL DEFAULT '',
        last_login TEXT,
        theme TEXT NOT NULL DEFAULT 'system',
        notifications BOOLEAN NOT NULL DEFAULT TRUE,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS chats (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        title TEXT NOT NULL,
        issue TEXT NOT NULL,
        category TEXT NOT NULL,
        priority TEXT NOT NULL,
        status TEXT NOT NULL,
        messages TEXT NOT NULL DEFAULT '[]', -- JSON array of messages
        review_rating INTEGER,
        review_feedback TEXT,
        reviewed_at TEXT,
        total_messages INTEGER NOT NULL DEFAULT 0,
        last_activity TEXT NOT NULL,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_chats_user_created ON chats (user_id, created_at DESC);
    CREATE INDEX IF NOT EXISTS idx_chats_status ON chats (status);

    CREATE TABLE IF NOT EXISTS alarms (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        time TEXT NOT NULL,
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        is_completed BOOLEAN NOT NULL DEFAULT FALSE,
        completed_at TEXT,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_alarms_user_time ON alarms (user_id, time);

    CREATE TABLE IF NOT EXISTS reports (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        chat_id TEXT NOT NULL,
        report_type TEXT NOT NULL,
        description TEXT NOT NULL,
        severity TEXT NOT NULL,
        status TEXT NOT NULL,
        admin_notes TEXT NOT NULL DEFAULT '',
        resolved_by TEXT,
        resolved_at TEXT,
        evidence TEXT NOT NULL DEFAULT '{}', -- JSON evidence object
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_reports_status ON reports (status);
    `
	_, err := s.db.Exec(schema)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t := parseTime(v.String)
	return &t
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

// whereBuilder accumulates AND-ed clauses for one query.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func uniqueViolation(err error) *DuplicateError {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return nil
	}
	field := "record"
	msg := sqliteErr.Error()
	if i := strings.LastIndex(msg, "."); i >= 0 {
		field = msg[i+1:]
	}
	return &DuplicateError{Field: field}
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// User methods

type userRow struct {
	ID            string         `db:"id"`
	Username      string         `db:"username"`
	Email         string         `db:"email"`
	PasswordHash  string         `db:"password_hash"`
	FirstName     string         `db:"first_name"`
	LastName      string         `db:"last_name"`
	Role          string         `db:"role"`
	IsActive      bool           `db:"is_active"`
	IsBanned      bool           `db:"is_banned"`
	BanReason     string         `db:"ban_reason"`
	LastLogin     sql.NullString `db:"last_login"`
	Theme         string         `db:"theme"`
	Notifications bool           `db:"notifications"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

const userColumns = `id, username, email, password_hash, first_name, last_name, role, is_active, is_banned,
    ban_reason, last_login, theme, notifications, created_at, updated_at`

func newUserRow(u *User) userRow {
	return userRow{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          string(u.Role),
		IsActive:      u.IsActive,
		IsBanned:      u.IsBanned,
		BanReason:     u.BanReason,
		LastLogin:     nullTime(u.LastLogin),
		Theme:         u.Preferences.Theme,
		Notifications: u.Preferences.Notifications,
		CreatedAt:     formatTime(u.CreatedAt),
		UpdatedAt:     formatTime(u.UpdatedAt),
	}
}

func (r userRow) toUser() User {
	return User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Role:         Role(r.Role),
		IsActive:     r.IsActive,
		IsBanned:     r.IsBanned,
		BanReason:    r.BanReason,
		LastLogin:    timePtr(r.LastLogin),
		Preferences:  Preferences{Theme: r.Theme, Notifications: r.Notifications},
		CreatedAt:    parseTime(r.CreatedAt),
		UpdatedAt:    parseTime(r.UpdatedAt),
	}
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	stamp(&u.CreatedAt, &u.UpdatedAt)
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (:id, :username, :email,
        :password_hash, :first_name, :last_name, :role, :is_active, :is_banned, :ban_reason, :last_login, :theme,
        :notifications, :created_at, :updated_at)`, newUserRow(u))
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getUserWhere(ctx context.Context, clause string, arg any) (*User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE "+clause, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	u := row.toUser()
	return &u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUserWhere(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUserWhere(ctx, "email = ?", email)
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUserWhere(ctx, "username = ?", username)
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *User) error {
	res, err := s.db.NamedExecContext(ctx, `UPDATE users SET username = :username, email = :email,
        password_hash = :password_hash, first_name = :first_name, last_name = :last_name, role = :role,
        is_active = :is_active, is_banned = :is_banned, ban_reason = :ban_reason, last_login = :last_login,
        theme = :theme, notifications = :notifications, updated_at = :updated_at WHERE id = :id`, newUserRow(u))
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return affectedOrNotFound(res)
}

func userWhere(c UserCriteria) *whereBuilder {
	w := &whereBuilder{}
	if c.Search != "" {
		like := "%" + c.Search + "%"
		w.add("(username LIKE ? OR email LIKE ? OR first_name LIKE ? OR last_name LIKE ?)", like, like, like, like)
	}
	if c.Role != "" {
		w.add("role = ?", string(c.Role))
	}
	if c.Active != nil {
		w.add("is_active = ?", *c.Active)
	}
	if c.Banned != nil {
		w.add("is_banned = ?", *c.Banned)
	}
	return w
}

func (s *SQLiteStore) ListUsers(ctx context.Context, c UserCriteria, srt Sort, p Page) ([]User, int64, error) {
	p = p.Normalize()
	w := userWhere(c)

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	col, desc := sortColumn(userSortFields, srt, "created_at")
	query := "SELECT " + userColumns + " FROM users" + w.String() + " ORDER BY " + col + direction(desc) + " LIMIT ? OFFSET ?"
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query, append(w.args, p.Limit, p.Skip())...); err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	users := make([]User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, total, nil
}

func direction(desc bool) string {
	if desc {
		return " DESC"
	}
	return " ASC"
}

func (s *SQLiteStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*User, error) {
	out := make(map[string]*User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In("SELECT "+userColumns+" FROM users WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build user lookup: %w", err)
	}
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	for _, r := range rows {
		u := r.toUser()
		out[u.ID] = &u
	}
	return out, nil
}

func (s *SQLiteStore) UserStats(ctx context.Context) (UserStats, error) {
	var st UserStats
	row := s.db.QueryRowxContext(ctx, `SELECT COUNT(*),
        COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN is_banned THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN role = 'admin' THEN 1 ELSE 0 END), 0)
        FROM users`)
	if err := row.Scan(&st.TotalUsers, &st.ActiveUsers, &st.BannedUsers, &st.AdminUsers); err != nil {
		return UserStats{}, fmt.Errorf("failed to aggregate user stats: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) UserAnalytics(ctx context.Context, since time.Time) (UserAnalytics, error) {
	var a UserAnalytics
	row := s.db.QueryRowxContext(ctx, `SELECT COUNT(*),
        COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN is_banned THEN 1 ELSE 0 END), 0)
        FROM users`, formatTime(since))
	if err := row.Scan(&a.Total, &a.New, &a.Active, &a.Banned); err != nil {
		return UserAnalytics{}, fmt.Errorf("failed to aggregate user analytics: %w", err)
	}
	return a, nil
}

// Chat methods

type chatRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	Title          string         `db:"title"`
	Issue          string         `db:"issue"`
	Category       string         `db:"category"`
	Priority       string         `db:"priority"`
	Status         string         `db:"status"`
	Messages       sql.NullString `db:"messages"`
	ReviewRating   sql.NullInt64  `db:"review_rating"`
	ReviewFeedback sql.NullString `db:"review_feedback"`
	ReviewedAt     sql.NullString `db:"reviewed_at"`
	TotalMessages  int            `db:"total_messages"`
	LastActivity   string         `db:"last_activity"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
}

const (
	chatSummaryColumns = `id, user_id, title, issue, category, priority, status, review_rating, review_feedback,
    reviewed_at, total_messages, last_activity, created_at, updated_at`
	chatColumns = chatSummaryColumns + ", messages"
)

func newChatRow(c *Chat) (chatRow, error) {
	msgs := c.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return chatRow{}, fmt.Errorf("failed to encode messages: %w", err)
	}
	row := chatRow{
		ID:            c.ID,
		UserID:        c.UserID,
		Title:         c.Title,
		Issue:         c.Issue,
		Category:      string(c.Category),
		Priority:      string(c.Priority),
		Status:        string(c.Status),
		Messages:      sql.NullString{String: string(raw), Valid: true},
		TotalMessages: c.Metadata.TotalMessages,
		LastActivity:  formatTime(c.Metadata.LastActivity),
		CreatedAt:     formatTime(c.CreatedAt),
		UpdatedAt:     formatTime(c.UpdatedAt),
	}
	if c.Review != nil {
		row.ReviewRating = sql.NullInt64{Int64: int64(c.Review.Rating), Valid: true}
		row.ReviewFeedback = sql.NullString{String: c.Review.Feedback, Valid: c.Review.Feedback != ""}
		row.ReviewedAt = nullTime(&c.Review.ReviewedAt)
	}
	return row, nil
}

func (r chatRow) toChat() (Chat, error) {
	c := Chat{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Issue:     r.Issue,
		Category:  Category(r.Category),
		Priority:  Priority(r.Priority),
		Status:    ChatStatus(r.Status),
		Metadata:  ChatMetadata{TotalMessages: r.TotalMessages, LastActivity: parseTime(r.LastActivity)},
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
	if r.Messages.Valid {
		if err := json.Unmarshal([]byte(r.Messages.String), &c.Messages); err != nil {
			return Chat{}, fmt.Errorf("failed to decode messages for chat %s: %w", r.ID, err)
		}
	}
	if r.ReviewRating.Valid {
		c.Review = &Review{Rating: int(r.ReviewRating.Int64), Feedback: r.ReviewFeedback.String}
		if at := timePtr(r.ReviewedAt); at != nil {
			c.Review.ReviewedAt = *at
		}
	}
	return c, nil
}

func (s *SQLiteStore) CreateChat(ctx context.Context, c *Chat) error {
	stamp(&c.CreatedAt, &c.UpdatedAt)
	row, err := newChatRow(c)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO chats (`+chatColumns+`) VALUES (:id, :user_id, :title, :issue,
        :category, :priority, :status, :review_rating, :review_feedback, :reviewed_at, :total_messages,
        :last_activity, :created_at, :updated_at, :messages)`, row)
	if err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getChatWhere(ctx context.Context, clause string, args ...any) (*Chat, error) {
	var row chatRow
	err := s.db.GetContext(ctx, &row, "SELECT "+chatColumns+" FROM chats WHERE "+clause, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	c, err := row.toChat()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) GetChat(ctx context.Context, id, ownerID string) (*Chat, error) {
	return s.getChatWhere(ctx, "id = ? AND user_id = ?", id, ownerID)
}

func (s *SQLiteStore) GetChatByID(ctx context.Context, id string) (*Chat, error) {
	return s.getChatWhere(ctx, "id = ?", id)
}

func (s *SQLiteStore) SaveChat(ctx context.Context, c *Chat) error {
	row, err := newChatRow(c)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `UPDATE chats SET title = :title, issue = :issue, category = :category,
        priority = :priority, status = :status, messages = :messages, review_rating = :review_rating,
        review_feedback = :review_feedback, reviewed_at = :reviewed_at, total_messages = :total_messages,
        last_activity = :last_activity, updated_at = :updated_at WHERE id = :id AND user_id = :user_id`, row)
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	return affectedOrNotFound(res)
}

func (s *SQLiteStore) DeleteChat(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return affectedOrNotFound(res)
}

func chatWhere(c ChatCriteria) *whereBuilder {
	w := &whereBuilder{}
	if c.OwnerID != "" {
		w.add("user_id = ?", c.OwnerID)
	}
	if c.Status != "" {
		w.add("status = ?", string(c.Status))
	}
	if c.Category != "" {
		w.add("category = ?", string(c.Category))
	}
	if c.Priority != "" {
		w.add("priority = ?", string(c.Priority))
	}
	if c.Search != "" {
		like := "%" + c.Search + "%"
		w.add("(title LIKE ? OR issue LIKE ?)", like, like)
	}
	if c.Reviewed != nil {
		if *c.Reviewed {
			w.add("review_rating IS NOT NULL")
		} else {
			w.add("review_rating IS NULL")
		}
	}
	return w
}

func (s *SQLiteStore) ListChats(ctx context.Context, q ChatQuery) ([]Chat, int64, error) {
	p := q.Page.Normalize()
	w := chatWhere(q.Criteria)

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM chats"+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count chats: %w", err)
	}

	cols := chatSummaryColumns
	if q.WithMessages {
		cols = chatColumns
	}
	col, desc := sortColumn(chatSortFields, q.Sort, "last_activity")
	query := "SELECT " + cols + " FROM chats" + w.String() + " ORDER BY " + col + direction(desc) + " LIMIT ? OFFSET ?"
	var rows []chatRow
	if err := s.db.SelectContext(ctx, &rows, query, append(w.args, p.Limit, p.Skip())...); err != nil {
		return nil, 0, fmt.Errorf("failed to query chats: %w", err)
	}
	chats := make([]Chat, 0, len(rows))
	for _, r := range rows {
		c, err := r.toChat()
		if err != nil {
			return nil, 0, err
		}
		chats = append(chats, c)
	}
	return chats, total, nil
}

func (s *SQLiteStore) GetChatsByIDs(ctx context.Context, ids []string) (map[string]*Chat, error) {
	out := make(map[string]*Chat, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In("SELECT "+chatSummaryColumns+" FROM chats WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build chat lookup: %w", err)
	}
	var rows []chatRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	for _, r := range rows {
		c, err := r.toChat()
		if err != nil {
			return nil, err
		}
		out[c.ID] = &c
	}
	return out, nil
}

func (s *SQLiteStore) ChatStats(ctx context.Context, c ChatCriteria, recentSince time.Time) (ChatStats, error) {
	w := chatWhere(c)
	var st ChatStats
	var avg sql.NullFloat64
	args := append([]any{formatTime(recentSince)}, w.args...)
	row := s.db.QueryRowxContext(ctx, `SELECT COUNT(*),
        COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN status = 'resolved' THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(total_messages), 0),
        AVG(review_rating),
        COALESCE(SUM(CASE WHEN status = 'resolved' AND updated_at >= ? THEN 1 ELSE 0 END), 0)
        FROM chats`+w.String(), args...)
	if err := row.Scan(&st.TotalChats, &st.ActiveChats, &st.ResolvedChats, &st.TotalMessages, &avg, &st.RecentResolved); err != nil {
		return ChatStats{}, fmt.Errorf("failed to aggregate chat stats: %w", err)
	}
	if avg.Valid {
		st.AverageRating = &avg.Float64
	}
	return st, nil
}

func (s *SQLiteStore) ChatAnalytics(ctx context.Context, since time.Time) (ChatAnalytics, error) {
	var a ChatAnalytics
	var avg sql.NullFloat64
	row := s.db.QueryRowxContext(ctx, `SELECT COUNT(*),
        COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN status = 'resolved' THEN 1 ELSE 0 END), 0),
        AVG(review_rating)
        FROM chats`, formatTime(since))
	if err := row.Scan(&a.Total, &a.New, &a.Active, &a.Resolved, &avg); err != nil {
		return ChatAnalytics{}, fmt.Errorf("failed to aggregate chat analytics: %w", err)
	}
	if avg.Valid {
		a.AverageRating = &avg.Float64
	}
	return a, nil
}

func (s *SQLiteStore) ChatTrend(ctx context.Context, since time.Time) ([]DailyCount, error) {
	trend := []DailyCount{}
	err := s.db.SelectContext(ctx, &trend, `SELECT substr(created_at, 1, 10) AS date, COUNT(*) AS count
        FROM chats WHERE created_at >= ? GROUP BY date ORDER BY date ASC`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate chat trend: %w", err)
	}
	return trend, nil
}

// Alarm methods

type alarmRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Time        string         `db:"time"`
	IsActive    bool           `db:"is_active"`
	IsCompleted bool           `db:"is_completed"`
	CompletedAt sql.NullString `db:"completed_at"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

const alarmColumns = "id, user_id, name, description, time, is_active, is_completed, completed_at, created_at, updated_at"

func newAlarmRow(a *Alarm) alarmRow {
	return alarmRow{
		ID:          a.ID,
		UserID:      a.UserID,
		Name:        a.Name,
		Description: a.Description,
		Time:        formatTime(a.Time),
		IsActive:    a.IsActive,
		IsCompleted: a.IsCompleted,
		CompletedAt: nullTime(a.CompletedAt),
		CreatedAt:   formatTime(a.CreatedAt),
		UpdatedAt:   formatTime(a.UpdatedAt),
	}
}

func (r alarmRow) toAlarm() Alarm {
	return Alarm{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description,
		Time:        parseTime(r.Time),
		IsActive:    r.IsActive,
		IsCompleted: r.IsCompleted,
		CompletedAt: timePtr(r.CompletedAt),
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
}

func (s *SQLiteStore) CreateAlarm(ctx context.Context, a *Alarm) error {
	stamp(&a.CreatedAt, &a.UpdatedAt)
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO alarms (`+alarmColumns+`) VALUES (:id, :user_id, :name,
        :description, :time, :is_active, :is_completed, :completed_at, :created_at, :updated_at)`, newAlarmRow(a))
	if err != nil {
		return fmt.Errorf("failed to insert alarm: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAlarm(ctx context.Context, id, ownerID string) (*Alarm, error) {
	var row alarmRow
	err := s.db.GetContext(ctx, &row, "SELECT "+alarmColumns+" FROM alarms WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alarm: %w", err)
	}
	a := row.toAlarm()
	return &a, nil
}

func (s *SQLiteStore) SaveAlarm(ctx context.Context, a *Alarm) error {
	res, err := s.db.NamedExecContext(ctx, `UPDATE alarms SET name = :name, description = :description, time = :time,
        is_active = :is_active, is_completed = :is_completed, completed_at = :completed_at, updated_at = :updated_at
        WHERE id = :id AND user_id = :user_id`, newAlarmRow(a))
	if err != nil {
		return fmt.Errorf("failed to update alarm: %w", err)
	}
	return affectedOrNotFound(res)
}

func (s *SQLiteStore) DeleteAlarm(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM alarms WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete alarm: %w", err)
	}
	return affectedOrNotFound(res)
}

func (s *SQLiteStore) DeactivateOverdueAlarms(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	ts := formatTime(now)
	res, err := s.db.ExecContext(ctx, `UPDATE alarms SET is_active = FALSE, updated_at = ?
        WHERE user_id = ? AND is_active = TRUE AND time < ?`, ts, ownerID, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate overdue alarms: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) ListAlarms(ctx context.Context, ownerID string) ([]Alarm, error) {
	var rows []alarmRow
	err := s.db.SelectContext(ctx, &rows, "SELECT "+alarmColumns+" FROM alarms WHERE user_id = ? ORDER BY time ASC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms: %w", err)
	}
	alarms := make([]Alarm, 0, len(rows))
	for _, r := range rows {
		alarms = append(alarms, r.toAlarm())
	}
	return alarms, nil
}

// Report methods

type reportRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	ChatID      string         `db:"chat_id"`
	ReportType  string         `db:"report_type"`
	Description string         `db:"description"`
	Severity    string         `db:"severity"`
	Status      string         `db:"status"`
	AdminNotes  string         `db:"admin_notes"`
	ResolvedBy  sql.NullString `db:"resolved_by"`
	ResolvedAt  sql.NullString `db:"resolved_at"`
	Evidence    string         `db:"evidence"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

const reportColumns = `id, user_id, chat_id, report_type, description, severity, status, admin_notes, resolved_by,
    resolved_at, evidence, created_at, updated_at`

func newReportRow(r *Report) (reportRow, error) {
	ev, err := json.Marshal(r.Evidence)
	if err != nil {
		return reportRow{}, fmt.Errorf("failed to encode evidence: %w", err)
	}
	row := reportRow{
		ID:          r.ID,
		UserID:      r.UserID,
		ChatID:      r.ChatID,
		ReportType:  string(r.ReportType),
		Description: r.Description,
		Severity:    string(r.Severity),
		Status:      string(r.Status),
		AdminNotes:  r.AdminNotes,
		ResolvedAt:  nullTime(r.ResolvedAt),
		Evidence:    string(ev),
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
	if r.ResolvedBy != nil {
		row.ResolvedBy = sql.NullString{String: *r.ResolvedBy, Valid: true}
	}
	return row, nil
}

func (r reportRow) toReport() (Report, error) {
	rep := Report{
		ID:          r.ID,
		UserID:      r.UserID,
		ChatID:      r.ChatID,
		ReportType:  ReportType(r.ReportType),
		Description: r.Description,
		Severity:    Severity(r.Severity),
		Status:      ReportStatus(r.Status),
		AdminNotes:  r.AdminNotes,
		ResolvedAt:  timePtr(r.ResolvedAt),
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
	if r.ResolvedBy.Valid {
		by := r.ResolvedBy.String
		rep.ResolvedBy = &by
	}
	if err := json.Unmarshal([]byte(r.Evidence), &rep.Evidence); err != nil {
		return Report{}, fmt.Errorf("failed to decode evidence for report %s: %w", r.ID, err)
	}
	return rep, nil
}

func (s *SQLiteStore) CreateReport(ctx context.Context, r *Report) error {
	stamp(&r.CreatedAt, &r.UpdatedAt)
	row, err := newReportRow(r)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO reports (`+reportColumns+`) VALUES (:id, :user_id, :chat_id,
        :report_type, :description, :severity, :status, :admin_notes, :resolved_by, :resolved_at, :evidence,
        :created_at, :updated_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*Report, error) {
	var row reportRow
	err := s.db.GetContext(ctx, &row, "SELECT "+reportColumns+" FROM reports WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	rep, err := row.toReport()
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (s *SQLiteStore) SaveReport(ctx context.Context, r *Report) error {
	row, err := newReportRow(r)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `UPDATE reports SET status = :status, admin_notes = :admin_notes,
        severity = :severity, resolved_by = :resolved_by, resolved_at = :resolved_at, evidence = :evidence,
        updated_at = :updated_at WHERE id = :id`, row)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	return affectedOrNotFound(res)
}

func reportWhere(c ReportCriteria) *whereBuilder {
	w := &whereBuilder{}
	if c.Status != "" {
		w.add("status = ?", string(c.Status))
	}
	if c.Type != "" {
		w.add("report_type = ?", string(c.Type))
	}
	if c.Severity != "" {
		w.add("severity = ?", string(c.Severity))
	}
	return w
}

func (s *SQLiteStore) ListReports(ctx context.Context, c ReportCriteria, p Page) ([]Report, int64, error) {
	p = p.Normalize()
	w := reportWhere(c)

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reports"+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}
	var rows []reportRow
	query := "SELECT " + reportColumns + " FROM reports" + w.String() + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	if err := s.db.SelectContext(ctx, &rows, query, append(w.args, p.Limit, p.Skip())...); err != nil {
		return nil, 0, fmt.Errorf("failed to query reports: %w", err)
	}
	reports := make([]Report, 0, len(rows))
	for _, r := range rows {
		rep, err := r.toReport()
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, rep)
	}
	return reports, total, nil
}
