package dbclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// mongoClient stores one document per workspace, keyed by name.
type mongoClient struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// buildMongoURI returns the connection URI and database name for repo. A
// host that is already a mongodb:// or mongodb+srv:// URI is used as is,
// with <password> placeholders filled in.
func buildMongoURI(repo *domain.Repository, password string, params map[string]string) (uri, dbName string) {
	if strings.HasPrefix(repo.Host, "mongodb+srv://") || strings.HasPrefix(repo.Host, "mongodb://") {
		uri = repo.Host
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
	} else {
		port := repo.Port
		if port == 0 {
			port = 27017
		}
		if repo.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", repo.Username, password, repo.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", repo.Host, port)
		}
		if len(params) > 0 {
			keys := make([]string, 0, len(params))
			for k := range params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pairs := make([]string, len(keys))
			for i, k := range keys {
				pairs[i] = k + "=" + params[k]
			}
			uri += "/?" + strings.Join(pairs, "&")
		}
	}

	dbName = repo.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	if dbName == "" {
		dbName = "ublockly"
	}
	return uri, dbName
}

// databaseFromURI extracts the path segment of user:pass@host/DB?params.
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return ""
	}
	path := rest[slash+1:]
	if q := strings.Index(path, "?"); q != -1 {
		path = path[:q]
	}
	return path
}

func newMongoClient(repo *domain.Repository, password string, ex extras) (*mongoClient, error) {
	uri, dbName := buildMongoURI(repo, password, ex.Params)

	logURI := uri
	if password != "" {
		logURI = strings.ReplaceAll(logURI, password, "***")
	}
	log.Printf("[MONGO] Connecting with URI: %s (database %s)", logURI, dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoClient{
		client: client,
		coll:   client.Database(dbName).Collection(ex.Collection),
	}, nil
}

func (m *mongoClient) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *mongoClient) Publish(ctx context.Context, w *domain.PublishedWorkspace) error {
	if w.PublishedAt.IsZero() {
		w.PublishedAt = time.Now().UTC()
	}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": w.Name}, w, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("publish %q: %w", w.Name, err)
	}
	return nil
}

func (m *mongoClient) Pull(ctx context.Context, name string) (*domain.PublishedWorkspace, error) {
	var w domain.PublishedWorkspace
	err := m.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%q: %w", name, ErrNotPublished)
	}
	if err != nil {
		return nil, fmt.Errorf("pull %q: %w", name, err)
	}
	return &w, nil
}

func (m *mongoClient) List(ctx context.Context) ([]domain.PublishedWorkspace, error) {
	cursor, err := m.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	var out []domain.PublishedWorkspace
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return out, nil
}

func (m *mongoClient) Delete(ctx context.Context, name string) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": name})
	return err
}

func (m *mongoClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
