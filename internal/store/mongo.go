package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	collections := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"chats": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "metadata.last_activity", Value: -1}}},
		},
		"alarms": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "time", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_active", Value: 1}}},
		},
		"reports": {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "chat_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}
	for name, models := range collections {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", name, err)
		}
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) users() *mongo.Collection   { return s.db.Collection("users") }
func (s *MongoStore) chats() *mongo.Collection   { return s.db.Collection("chats") }
func (s *MongoStore) alarms() *mongo.Collection  { return s.db.Collection("alarms") }
func (s *MongoStore) reports() *mongo.Collection { return s.db.Collection("reports") }

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...options.Lister[options.FindOneOptions]) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter, opts...).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	return &out, nil
}

func replaceOne(ctx context.Context, coll *mongo.Collection, filter bson.M, doc any) error {
	res, err := coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		if dup := duplicateKey(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to update %s: %w", coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteOne(ctx context.Context, coll *mongo.Collection, filter bson.M) error {
	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func duplicateKey(err error) *DuplicateError {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "username"):
		return &DuplicateError{Field: "username"}
	case strings.Contains(msg, "email"):
		return &DuplicateError{Field: "email"}
	}
	return &DuplicateError{Field: "record"}
}

func regexMatch(value string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(value), "$options": "i"}
}

func sortDoc(fields map[string]string, s Sort, fallback string) bson.D {
	col, desc := sortColumn(fields, s, fallback)
	if col == "last_activity" {
		col = "metadata.last_activity"
	}
	dir := 1
	if desc {
		dir = -1
	}
	return bson.D{{Key: col, Value: dir}}
}

func pageOptions(p Page) *options.FindOptionsBuilder {
	return options.Find().SetSkip(int64(p.Skip())).SetLimit(int64(p.Limit))
}

type countDoc struct {
	Count int64 `bson:"count"`
}

func firstCount(c []countDoc) int64 {
	if len(c) == 0 {
		return 0
	}
	return c[0].Count
}

func countWhere(filter bson.M) bson.A {
	return bson.A{bson.M{"$match": filter}, bson.M{"$count": "count"}}
}

func sumIf(cond any) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
}

func aggregateOne(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, out any) (bool, error) {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return false, fmt.Errorf("failed to aggregate %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)
	if !cursor.Next(ctx) {
		return false, cursor.Err()
	}
	if err := cursor.Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode %s aggregate: %w", coll.Name(), err)
	}
	return true, nil
}

// User methods

func (s *MongoStore) CreateUser(ctx context.Context, u *User) error {
	stamp(&u.CreatedAt, &u.UpdatedAt)
	if _, err := s.users().InsertOne(ctx, u); err != nil {
		if dup := duplicateKey(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*User, error) {
	return findOne[User](ctx, s.users(), bson.M{"_id": id})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return findOne[User](ctx, s.users(), bson.M{"email": email})
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return findOne[User](ctx, s.users(), bson.M{"username": username})
}

func (s *MongoStore) UpdateUser(ctx context.Context, u *User) error {
	return replaceOne(ctx, s.users(), bson.M{"_id": u.ID}, u)
}

func userFilter(c UserCriteria) bson.M {
	filter := bson.M{}
	if c.Search != "" {
		filter["$or"] = bson.A{
			bson.M{"username": regexMatch(c.Search)},
			bson.M{"email": regexMatch(c.Search)},
			bson.M{"first_name": regexMatch(c.Search)},
			bson.M{"last_name": regexMatch(c.Search)},
		}
	}
	if c.Role != "" {
		filter["role"] = c.Role
	}
	if c.Active != nil {
		filter["is_active"] = *c.Active
	}
	if c.Banned != nil {
		filter["is_banned"] = *c.Banned
	}
	return filter
}

func (s *MongoStore) ListUsers(ctx context.Context, c UserCriteria, srt Sort, p Page) ([]User, int64, error) {
	p = p.Normalize()
	filter := userFilter(c)
	total, err := s.users().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	opts := pageOptions(p).SetSort(sortDoc(userSortFields, srt, "created_at"))
	cursor, err := s.users().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	users := []User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, total, nil
}

func (s *MongoStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*User, error) {
	out := make(map[string]*User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := s.users().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (s *MongoStore) UserStats(ctx context.Context) (UserStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":          nil,
			"total_users":  bson.M{"$sum": 1},
			"active_users": sumIf("$is_active"),
			"banned_users": sumIf("$is_banned"),
			"admin_users":  sumIf(bson.M{"$eq": bson.A{"$role", RoleAdmin}}),
		}}},
	}
	var doc struct {
		Total  int64 `bson:"total_users"`
		Active int64 `bson:"active_users"`
		Banned int64 `bson:"banned_users"`
		Admins int64 `bson:"admin_users"`
	}
	if _, err := aggregateOne(ctx, s.users(), pipeline, &doc); err != nil {
		return UserStats{}, err
	}
	return UserStats{TotalUsers: doc.Total, ActiveUsers: doc.Active, BannedUsers: doc.Banned, AdminUsers: doc.Admins}, nil
}

func (s *MongoStore) UserAnalytics(ctx context.Context, since time.Time) (UserAnalytics, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"total":  bson.A{bson.M{"$count": "count"}},
			"new":    countWhere(bson.M{"created_at": bson.M{"$gte": since}}),
			"active": countWhere(bson.M{"is_active": true}),
			"banned": countWhere(bson.M{"is_banned": true}),
		}}},
	}
	var doc struct {
		Total  []countDoc `bson:"total"`
		New    []countDoc `bson:"new"`
		Active []countDoc `bson:"active"`
		Banned []countDoc `bson:"banned"`
	}
	if _, err := aggregateOne(ctx, s.users(), pipeline, &doc); err != nil {
		return UserAnalytics{}, err
	}
	return UserAnalytics{
		Total:  firstCount(doc.Total),
		New:    firstCount(doc.New),
		Active: firstCount(doc.Active),
		Banned: firstCount(doc.Banned),
	}, nil
}

// Chat methods

func (s *MongoStore) CreateChat(ctx context.Context, c *Chat) error {
	stamp(&c.CreatedAt, &c.UpdatedAt)
	if _, err := s.chats().InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}
	return nil
}

func (s *MongoStore) GetChat(ctx context.Context, id, ownerID string) (*Chat, error) {
	return findOne[Chat](ctx, s.chats(), bson.M{"_id": id, "user_id": ownerID})
}

func (s *MongoStore) GetChatByID(ctx context.Context, id string) (*Chat, error) {
	return findOne[Chat](ctx, s.chats(), bson.M{"_id": id})
}

func (s *MongoStore) SaveChat(ctx context.Context, c *Chat) error {
	return replaceOne(ctx, s.chats(), bson.M{"_id": c.ID, "user_id": c.UserID}, c)
}

func (s *MongoStore) DeleteChat(ctx context.Context, id, ownerID string) error {
	return deleteOne(ctx, s.chats(), bson.M{"_id": id, "user_id": ownerID})
}

func chatFilter(c ChatCriteria) bson.M {
	filter := bson.M{}
	if c.OwnerID != "" {
		filter["user_id"] = c.OwnerID
	}
	if c.Status != "" {
		filter["status"] = c.Status
	}
	if c.Category != "" {
		filter["category"] = c.Category
	}
	if c.Priority != "" {
		filter["priority"] = c.Priority
	}
	if c.Search != "" {
		filter["$or"] = bson.A{
			bson.M{"title": regexMatch(c.Search)},
			bson.M{"issue": regexMatch(c.Search)},
		}
	}
	if c.Reviewed != nil {
		filter["review.rating"] = bson.M{"$exists": *c.Reviewed}
	}
	return filter
}

func (s *MongoStore) ListChats(ctx context.Context, q ChatQuery) ([]Chat, int64, error) {
	p := q.Page.Normalize()
	filter := chatFilter(q.Criteria)
	total, err := s.chats().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count chats: %w", err)
	}
	opts := pageOptions(p).SetSort(sortDoc(chatSortFields, q.Sort, "last_activity"))
	if !q.WithMessages {
		opts.SetProjection(bson.M{"messages": 0})
	}
	cursor, err := s.chats().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query chats: %w", err)
	}
	chats := []Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, 0, fmt.Errorf("failed to decode chats: %w", err)
	}
	return chats, total, nil
}

func (s *MongoStore) GetChatsByIDs(ctx context.Context, ids []string) (map[string]*Chat, error) {
	out := make(map[string]*Chat, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"messages": 0})
	cursor, err := s.chats().Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	var chats []Chat
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	for i := range chats {
		out[chats[i].ID] = &chats[i]
	}
	return out, nil
}

func (s *MongoStore) ChatStats(ctx context.Context, c ChatCriteria, recentSince time.Time) (ChatStats, error) {
	resolved := bson.M{"$eq": bson.A{"$status", ChatResolved}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: chatFilter(c)}},
		{{Key: "$group", Value: bson.M{
			"_id":            nil,
			"total_chats":    bson.M{"$sum": 1},
			"active_chats":   sumIf(bson.M{"$eq": bson.A{"$status", ChatActive}}),
			"resolved_chats": sumIf(resolved),
			"total_messages": bson.M{"$sum": "$metadata.total_messages"},
			"average_rating": bson.M{"$avg": "$review.rating"},
			"recent_resolved": sumIf(bson.M{"$and": bson.A{
				resolved,
				bson.M{"$gte": bson.A{"$updated_at", recentSince}},
			}}),
		}}},
	}
	var doc struct {
		Total          int64    `bson:"total_chats"`
		Active         int64    `bson:"active_chats"`
		Resolved       int64    `bson:"resolved_chats"`
		TotalMessages  int64    `bson:"total_messages"`
		AverageRating  *float64 `bson:"average_rating"`
		RecentResolved int64    `bson:"recent_resolved"`
	}
	if _, err := aggregateOne(ctx, s.chats(), pipeline, &doc); err != nil {
		return ChatStats{}, err
	}
	return ChatStats{
		TotalChats:     doc.Total,
		ActiveChats:    doc.Active,
		ResolvedChats:  doc.Resolved,
		TotalMessages:  doc.TotalMessages,
		AverageRating:  doc.AverageRating,
		RecentResolved: doc.RecentResolved,
	}, nil
}

func (s *MongoStore) ChatAnalytics(ctx context.Context, since time.Time) (ChatAnalytics, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"total":    bson.A{bson.M{"$count": "count"}},
			"new":      countWhere(bson.M{"created_at": bson.M{"$gte": since}}),
			"active":   countWhere(bson.M{"status": ChatActive}),
			"resolved": countWhere(bson.M{"status": ChatResolved}),
			"average_rating": bson.A{
				bson.M{"$match": bson.M{"review.rating": bson.M{"$exists": true}}},
				bson.M{"$group": bson.M{"_id": nil, "avg": bson.M{"$avg": "$review.rating"}}},
			},
		}}},
	}
	var doc struct {
		Total         []countDoc `bson:"total"`
		New           []countDoc `bson:"new"`
		Active        []countDoc `bson:"active"`
		Resolved      []countDoc `bson:"resolved"`
		AverageRating []struct {
			Avg float64 `bson:"avg"`
		} `bson:"average_rating"`
	}
	if _, err := aggregateOne(ctx, s.chats(), pipeline, &doc); err != nil {
		return ChatAnalytics{}, err
	}
	a := ChatAnalytics{
		Total:    firstCount(doc.Total),
		New:      firstCount(doc.New),
		Active:   firstCount(doc.Active),
		Resolved: firstCount(doc.Resolved),
	}
	if len(doc.AverageRating) > 0 {
		a.AverageRating = &doc.AverageRating[0].Avg
	}
	return a, nil
}

func (s *MongoStore) ChatTrend(ctx context.Context, since time.Time) ([]DailyCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"created_at": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$created_at"}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := s.chats().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate chat trend: %w", err)
	}
	trend := []DailyCount{}
	if err := cursor.All(ctx, &trend); err != nil {
		return nil, fmt.Errorf("failed to decode chat trend: %w", err)
	}
	return trend, nil
}

// Alarm methods

func (s *MongoStore) CreateAlarm(ctx context.Context, a *Alarm) error {
	stamp(&a.CreatedAt, &a.UpdatedAt)
	if _, err := s.alarms().InsertOne(ctx, a); err != nil {
		return fmt.Errorf("failed to insert alarm: %w", err)
	}
	return nil
}

func (s *MongoStore) GetAlarm(ctx context.Context, id, ownerID string) (*Alarm, error) {
	return findOne[Alarm](ctx, s.alarms(), bson.M{"_id": id, "user_id": ownerID})
}

func (s *MongoStore) SaveAlarm(ctx context.Context, a *Alarm) error {
	return replaceOne(ctx, s.alarms(), bson.M{"_id": a.ID, "user_id": a.UserID}, a)
}

func (s *MongoStore) DeleteAlarm(ctx context.Context, id, ownerID string) error {
	return deleteOne(ctx, s.alarms(), bson.M{"_id": id, "user_id": ownerID})
}

func (s *MongoStore) DeactivateOverdueAlarms(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	res, err := s.alarms().UpdateMany(ctx,
		bson.M{"user_id": ownerID, "is_active": true, "time": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate overdue alarms: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) ListAlarms(ctx context.Context, ownerID string) ([]Alarm, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})
	cursor, err := s.alarms().Find(ctx, bson.M{"user_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms: %w", err)
	}
	alarms := []Alarm{}
	if err := cursor.All(ctx, &alarms); err != nil {
		return nil, fmt.Errorf("failed to decode alarms: %w", err)
	}
	return alarms, nil
}

// Report methods

func (s *MongoStore) CreateReport(ctx context.Context, r *Report) error {
	stamp(&r.CreatedAt, &r.UpdatedAt)
	if _, err := s.reports().InsertOne(ctx, r); err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (s *MongoStore) GetReport(ctx context.Context, id string) (*Report, error) {
	return findOne[Report](ctx, s.reports(), bson.M{"_id": id})
}

func (s *MongoStore) SaveReport(ctx context.Context, r *Report) error {
	return replaceOne(ctx, s.reports(), bson.M{"_id": r.ID}, r)
}

func reportFilter(c ReportCriteria) bson.M {
	filter := bson.M{}
	if c.Status != "" {
		filter["status"] = c.Status
	}
	if c.Type != "" {
		filter["report_type"] = c.Type
	}
	if c.Severity != "" {
		filter["severity"] = c.Severity
	}
	return filter
}

func (s *MongoStore) ListReports(ctx context.Context, c ReportCriteria, p Page) ([]Report, int64, error) {
	p = p.Normalize()
	filter := reportFilter(c)
	total, err := s.reports().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}
	opts := pageOptions(p).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.reports().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query reports: %w", err)
	}
	reports := []Report{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, 0, fmt.Errorf("failed to decode reports: %w", err)
	}
	return reports, total, nil
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
