package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/pkg/metrics"
)

const (
	collDoctors       = "doctors"
	collOrganizations = "organizations"
	collPatients      = "patients"
	collMedicalImages = "medicalimages"
	collAuditLogs     = "auditlogs"
)

type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	// Transactions enables multi-document transactions. The server must be
	// a replica set or sharded cluster.
	Transactions bool
}

// DB owns the client and hands out repositories over one database.
type DB struct {
	client       *mongo.Client
	db           *mongo.Database
	metrics      *metrics.Metrics
	transactions bool
}

// Connect dials the server and verifies it with a ping.
func Connect(ctx context.Context, cfg Config, m *metrics.Metrics) (*DB, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &DB{
		client:       client,
		db:           client.Database(cfg.Database),
		metrics:      m,
		transactions: cfg.Transactions,
	}, nil
}

func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, readpref.Primary())
}

// Repositories exposes the database through the repository interfaces.
func (d *DB) Repositories() repository.Store {
	return repository.Store{
		Doctors:       &doctorRepository{db: d, coll: d.db.Collection(collDoctors)},
		Organizations: &organizationRepository{db: d, coll: d.db.Collection(collOrganizations)},
		Patients:      &patientRepository{db: d, coll: d.db.Collection(collPatients)},
		MedicalImages: &medicalImageRepository{db: d, coll: d.db.Collection(collMedicalImages)},
		AuditLogs:     &auditRepository{db: d, coll: d.db.Collection(collAuditLogs)},
		Tx:            d,
		Pinger:        d,
	}
}

// WithTransaction runs fn inside a session transaction. A ctx already bound
// to a session joins it. With transactions disabled fn runs directly and
// livsafectl reconcile repairs any half-applied link.
func (d *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !d.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := d.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (d *DB) observe(collection, op string, start time.Time, err *error) {
	d.metrics.ObserveStore(collection, op, start, *err)
}
