// Package mongo provides a Store backend on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	lienos "github.com/3piecechickendinner/LeinOS"
	"github.com/3piecechickendinner/LeinOS/deadline"
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/lien"
	"github.com/3piecechickendinner/LeinOS/notification"
	"github.com/3piecechickendinner/LeinOS/payment"
	lienstore "github.com/3piecechickendinner/LeinOS/store"
	"github.com/3piecechickendinner/LeinOS/tenant"
)

// Collection name constants.
const (
	colLiens         = "lienos_liens"
	colPayments      = "lienos_payments"
	colDeadlines     = "lienos_deadlines"
	colNotifications = "lienos_notifications"
)

// compile-time interface check
var _ lienstore.Store = (*Store)(nil)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New wraps an already-connected client and database name.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Open connects a client from a URI and verifies connectivity.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("lienos/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("lienos/mongo: ping: %w", err)
	}
	return New(client, database), nil
}

// Database returns the underlying database for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates the indexes every collection needs: tenant-first
// compound indexes plus the uniqueness constraints the dedupe paths
// rely on.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colLiens: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "redemption_deadline", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "lien_id", Value: 1}, {Key: "applied_date", Value: 1}}},
			{
				Keys: bson.D{
					{Key: "tenant_id", Value: 1}, {Key: "lien_id", Value: 1},
					{Key: "applied_date", Value: 1}, {Key: "amount_cents", Value: 1},
					{Key: "reference", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
		colDeadlines: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "lien_id", Value: 1}, {Key: "kind", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
		},
		colNotifications: {
			{
				Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "dedupe_key", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(
					bson.M{"dedupe_key": bson.M{"$exists": true}},
				),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "read", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%w: %s indexes: %v", lienos.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func guard(tenantID tenant.ID) error {
	if tenantID.IsZero() {
		return lienos.ErrMissingTenant
	}
	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return lienos.ErrTimeout
	}
	return err
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// scoped builds the base filter every query starts from.
func scoped(tenantID tenant.ID) bson.M {
	return bson.M{"tenant_id": tenantID.String()}
}

// Lien methods

func (s *Store) CreateLien(ctx context.Context, tenantID tenant.ID, l *lien.Lien) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	_, err := s.db.Collection(colLiens).InsertOne(ctx, toLienModel(l))
	if mongo.IsDuplicateKeyError(err) {
		return lienos.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("lienos/mongo: create lien: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) (*lien.Lien, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	filter := scoped(tenantID)
	filter["_id"] = lienID.String()

	var m lienModel
	err := s.db.Collection(colLiens).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, lienos.ErrLienNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lienos/mongo: get lien: %w", mapErr(err))
	}
	return fromLienModel(&m)
}

func (s *Store) ListLiens(ctx context.Context, tenantID tenant.ID, f lien.Filter) ([]*lien.Lien, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	filter := scoped(tenantID)
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.County != "" {
		filter["county"] = caseInsensitive(f.County)
	}
	if f.State != "" {
		filter["state"] = caseInsensitive(f.State)
	}
	if rng := dateRange(f.PurchasedFrom.String(), f.PurchasedTo.String(), f.PurchasedFrom.IsZero(), f.PurchasedTo.IsZero()); rng != nil {
		filter["purchase_date"] = rng
	}
	if rng := dateRange(f.DeadlineFrom.String(), f.DeadlineTo.String(), f.DeadlineFrom.IsZero(), f.DeadlineTo.IsZero()); rng != nil {
		filter["redemption_deadline"] = rng
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "redemption_deadline", Value: 1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts = opts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		opts = opts.SetSkip(int64(f.Offset))
	}

	cursor, err := s.db.Collection(colLiens).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("lienos/mongo: list liens: %w", mapErr(err))
	}
	var models []lienModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, mapErr(err)
	}
	result := make([]*lien.Lien, 0, len(models))
	for i := range models {
		l, err := fromLienModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}

func (s *Store) UpdateLien(ctx context.Context, tenantID tenant.ID, l *lien.Lien) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	now := time.Now().UTC()
	filter := scoped(tenantID)
	filter["_id"] = l.ID.String()
	filter["revision"] = l.Revision

	update := bson.M{
		"$set": bson.M{
			"certificate_number":  l.CertificateNumber,
			"principal_cents":     l.Principal.Amount,
			"currency":            l.Principal.Currency,
			"annual_rate_bp":      l.AnnualRate.BasisPoints(),
			"redemption_deadline": l.RedemptionDeadline.String(),
			"status":              string(l.Status),
			"county":              l.County,
			"state":               l.State,
			"metadata":            l.Metadata,
			"updated_at":          now,
		},
		"$inc": bson.M{"revision": 1},
	}
	res, err := s.db.Collection(colLiens).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("lienos/mongo: update lien: %w", mapErr(err))
	}
	if res.MatchedCount == 0 {
		return s.writeMiss(ctx, colLiens, tenantID, l.ID.String(), lienos.ErrLienNotFound)
	}
	l.Revision++
	l.UpdatedAt = now
	return nil
}

// writeMiss distinguishes a stale revision from a missing document.
func (s *Store) writeMiss(ctx context.Context, col string, tenantID tenant.ID, idRaw string, notFound error) error {
	filter := scoped(tenantID)
	filter["_id"] = idRaw
	err := s.db.Collection(col).FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if isNoDocuments(err) {
		return notFound
	}
	if err != nil {
		return mapErr(err)
	}
	return lienos.ErrStaleWrite
}

// Payment methods

func (s *Store) CreatePayment(ctx context.Context, tenantID tenant.ID, p *payment.Payment) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	_, err := s.db.Collection(colPayments).InsertOne(ctx, toPaymentModel(p))
	if mongo.IsDuplicateKeyError(err) {
		return lienos.ErrDuplicatePayment
	}
	if err != nil {
		return fmt.Errorf("lienos/mongo: create payment: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, tenantID tenant.ID, paymentID id.PaymentID) (*payment.Payment, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	filter := scoped(tenantID)
	filter["_id"] = paymentID.String()

	var m paymentModel
	err := s.db.Collection(colPayments).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, lienos.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lienos/mongo: get payment: %w", mapErr(err))
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPaymentsByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) ([]*payment.Payment, error) {
	return s.ListPayments(ctx, tenantID, payment.ListOpts{LienID: lienID})
}

func (s *Store) ListPayments(ctx context.Context, tenantID tenant.ID, opts payment.ListOpts) ([]*payment.Payment, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	filter := scoped(tenantID)
	if !opts.LienID.IsNil() {
		filter["lien_id"] = opts.LienID.String()
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "applied_date", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colPayments).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("lienos/mongo: list payments: %w", mapErr(err))
	}
	var models []paymentModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, mapErr(err)
	}
	result := make([]*payment.Payment, 0, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) PaymentExists(ctx context.Context, tenantID tenant.ID, p *payment.Payment) (bool, error) {
	if err := guard(tenantID); err != nil {
		return false, err
	}
	filter := scoped(tenantID)
	filter["lien_id"] = p.LienID.String()
	filter["applied_date"] = p.AppliedDate.String()
	filter["amount_cents"] = p.Amount.Amount
	filter["reference"] = p.Reference

	err := s.db.Collection(colPayments).FindOne(ctx, filter,
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if isNoDocuments(err) {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

// Deadline methods

func (s *Store) CreateDeadline(ctx context.Context, tenantID tenant.ID, inst *deadline.Instance) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	_, err := s.db.Collection(colDeadlines).InsertOne(ctx, toDeadlineModel(inst))
	if mongo.IsDuplicateKeyError(err) {
		return lienos.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("lienos/mongo: create deadline: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetDeadline(ctx context.Context, tenantID tenant.ID, deadlineID id.DeadlineID) (*deadline.Instance, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	filter := scoped(tenantID)
	filter["_id"] = deadlineID.String()

	var m deadlineModel
	err := s.db.Collection(colDeadlines).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, lienos.ErrDeadlineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lienos/mongo: get deadline: %w", mapErr(err))
	}
	return fromDeadlineModel(&m)
}

func (s *Store) GetDeadlineByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID, kind deadline.Kind) (*deadline.Instance, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	filter := scoped(tenantID)
	filter["lien_id"] = lienID.String()
	filter["kind"] = string(kind)

	var m deadlineModel
	err := s.db.Collection(colDeadlines).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, lienos.ErrDeadlineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lienos/mongo: get deadline by lien: %w", mapErr(err))
	}
	return fromDeadlineModel(&m)
}

func (s *Store) ListDeadlines(ctx context.Context, tenantID tenant.ID, f deadline.Filter) ([]*deadline.Instance, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	filter := scoped(tenantID)
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.Kind != "" {
		filter["kind"] = string(f.Kind)
	}
	if rng := dateRange(f.DueFrom.String(), f.DueTo.String(), f.DueFrom.IsZero(), f.DueTo.IsZero()); rng != nil {
		filter["due_date"] = rng
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "due_date", Value: 1}, {Key: "lien_id", Value: 1}})
	if f.Limit > 0 {
		opts = opts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		opts = opts.SetSkip(int64(f.Offset))
	}

	cursor, err := s.db.Collection(colDeadlines).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("lienos/mongo: list deadlines: %w", mapErr(err))
	}
	var models []deadlineModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, mapErr(err)
	}
	result := make([]*deadline.Instance, 0, len(models))
	for i := range models {
		inst, err := fromDeadlineModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, nil
}

func (s *Store) UpdateDeadline(ctx context.Context, tenantID tenant.ID, inst *deadline.Instance) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	now := time.Now().UTC()
	filter := scoped(tenantID)
	filter["_id"] = inst.ID.String()
	filter["revision"] = inst.Revision

	fired := inst.FiredThresholds
	if fired == nil {
		fired = []int{}
	}
	update := bson.M{
		"$set": bson.M{
			"due_date":         inst.DueDate.String(),
			"status":           string(inst.Status),
			"fired_thresholds": fired,
			"updated_at":       now,
		},
		"$inc": bson.M{"revision": 1},
	}
	res, err := s.db.Collection(colDeadlines).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("lienos/mongo: update deadline: %w", mapErr(err))
	}
	if res.MatchedCount == 0 {
		return s.writeMiss(ctx, colDeadlines, tenantID, inst.ID.String(), lienos.ErrDeadlineNotFound)
	}
	inst.Revision++
	inst.UpdatedAt = now
	return nil
}

// Notification methods

func (s *Store) CreateNotification(ctx context.Context, tenantID tenant.ID, n *notification.Notification) (*notification.Notification, bool, error) {
	if err := guard(tenantID); err != nil {
		return nil, false, err
	}
	_, err := s.db.Collection(colNotifications).InsertOne(ctx, toNotificationModel(n))
	if mongo.IsDuplicateKeyError(err) && n.DedupeKey != "" {
		filter := scoped(tenantID)
		filter["dedupe_key"] = n.DedupeKey

		var m notificationModel
		if lookupErr := s.db.Collection(colNotifications).FindOne(ctx, filter).Decode(&m); lookupErr != nil {
			return nil, false, mapErr(lookupErr)
		}
		existing, convErr := fromNotificationModel(&m)
		if convErr != nil {
			return nil, false, convErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lienos/mongo: create notification: %w", mapErr(err))
	}
	return n, true, nil
}

func (s *Store) GetNotification(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID) (*notification.Notification, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	filter := scoped(tenantID)
	filter["_id"] = notificationID.String()

	var m notificationModel
	err := s.db.Collection(colNotifications).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, lienos.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lienos/mongo: get notification: %w", mapErr(err))
	}
	return fromNotificationModel(&m)
}

func (s *Store) ListNotifications(ctx context.Context, tenantID tenant.ID, f notification.Filter) ([]*notification.Notification, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	filter := scoped(tenantID)
	if f.Type != "" {
		filter["type"] = string(f.Type)
	}
	if f.Priority != "" {
		filter["priority"] = string(f.Priority)
	}
	if !f.LienID.IsNil() {
		filter["lien_id"] = f.LienID.String()
	}
	if f.Unread {
		filter["read"] = false
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts = opts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		opts = opts.SetSkip(int64(f.Offset))
	}

	cursor, err := s.db.Collection(colNotifications).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("lienos/mongo: list notifications: %w", mapErr(err))
	}
	var models []notificationModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, mapErr(err)
	}
	result := make([]*notification.Notification, 0, len(models))
	for i := range models {
		n, err := fromNotificationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID, readAt time.Time) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	filter := scoped(tenantID)
	filter["_id"] = notificationID.String()

	update := bson.M{
		"$set": bson.M{"read": true, "read_at": readAt.UTC(), "updated_at": time.Now().UTC()},
		"$inc": bson.M{"revision": 1},
	}
	res, err := s.db.Collection(colNotifications).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("lienos/mongo: mark notification read: %w", mapErr(err))
	}
	if res.MatchedCount == 0 {
		return lienos.ErrNotificationNotFound
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, tenantID tenant.ID) (int64, error) {
	if err := guard(tenantID); err != nil {
		return 0, err
	}
	filter := scoped(tenantID)
	filter["read"] = false
	count, err := s.db.Collection(colNotifications).CountDocuments(ctx, filter)
	return count, mapErr(err)
}

// Helpers

func caseInsensitive(value string) bson.M {
	return bson.M{"$regex": "^" + escapeRegex(value) + "$", "$options": "i"}
}

func escapeRegex(s string) string {
	const special = `\.+*?()|[]{}^$`
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		for j := 0; j < len(special); j++ {
			if s[i] == special[j] {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}

func dateRange(from, to string, fromZero, toZero bool) bson.M {
	if fromZero && toZero {
		return nil
	}
	rng := bson.M{}
	if !fromZero {
		rng["$gte"] = from
	}
	if !toZero {
		rng["$lte"] = to
	}
	return rng
}
