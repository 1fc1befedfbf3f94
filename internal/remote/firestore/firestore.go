// Package firestore mirrors documents into Cloud Firestore through the
// REST API client.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	fs "google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"

	"subly/internal/remote"
)

const listPageSize = 300

type Client struct {
	docs     *fs.ProjectsDatabasesDocumentsService
	database string // projects/{project}/databases/{database}
}

var _ remote.Backend = (*Client)(nil)

// New builds a client from service account credentials. Credentials come
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order. Extra options are applied
// last, so tests can point the client elsewhere.
func New(ctx context.Context, projectID, databaseID string, opts ...goption.ClientOption) (*Client, error) {
	if projectID == "" {
		return nil, errors.New("missing firestore project id")
	}
	if databaseID == "" {
		databaseID = "(default)"
	}

	if len(opts) == 0 {
		credentialsJSON, err := loadCredentials(ctx)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(fs.DatastoreScope),
		}
	}

	svc, err := fs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore service: %w", err)
	}

	slog.InfoContext(ctx, "Firestore client created", "project", projectID, "database", databaseID)
	return &Client{
		docs:     svc.Projects.Databases.Documents,
		database: fmt.Sprintf("projects/%s/databases/%s", projectID, databaseID),
	}, nil
}

func loadCredentials(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) documentName(uid, collection, id string) string {
	return c.database + "/documents/" + remote.DocumentPath(uid, collection, id)
}

// PutDocument replaces the document and stamps updatedAt with the commit time.
func (c *Client) PutDocument(ctx context.Context, uid, collection, id string, doc remote.Document) error {
	fields, err := encodeFields(doc)
	if err != nil {
		return err
	}
	req := &fs.CommitRequest{
		Writes: []*fs.Write{{
			Update: &fs.Document{
				Name:   c.documentName(uid, collection, id),
				Fields: fields,
			},
			UpdateTransforms: []*fs.FieldTransform{{
				FieldPath:        remote.FieldUpdatedAt,
				SetToServerValue: "REQUEST_TIME",
			}},
		}},
	}
	if _, err := c.docs.Commit(c.database, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("commit %s: %w", remote.DocumentPath(uid, collection, id), err)
	}
	return nil
}

// DeleteDocument removes the document; a missing document is not an error.
func (c *Client) DeleteDocument(ctx context.Context, uid, collection, id string) error {
	_, err := c.docs.Delete(c.documentName(uid, collection, id)).Context(ctx).Do()
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", remote.DocumentPath(uid, collection, id), err)
	}
	return nil
}

func (c *Client) ListDocuments(ctx context.Context, uid, collection string) ([]remote.Document, error) {
	parent := c.database + "/documents/users/" + uid
	kinds := remote.FieldKinds(collection)

	var out []remote.Document
	err := c.docs.List(parent, collection).
		PageSize(listPageSize).
		Context(ctx).
		Pages(ctx, func(resp *fs.ListDocumentsResponse) error {
			for _, d := range resp.Documents {
				out = append(out, decodeFields(d.Fields, kinds))
			}
			return nil
		})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", remote.CollectionPath(uid, collection), err)
	}
	return out, nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func encodeFields(doc remote.Document) (map[string]fs.Value, error) {
	fields := make(map[string]fs.Value, len(doc))
	for k, v := range doc {
		if k == remote.FieldUpdatedAt {
			continue
		}
		value, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = value
	}
	return fields, nil
}

// encodeValue forces the typed member onto the wire so false, 0 and ""
// are sent instead of being dropped as empty.
func encodeValue(v any) (fs.Value, error) {
	switch x := v.(type) {
	case nil:
		return fs.Value{NullValue: "NULL_VALUE"}, nil
	case string:
		return fs.Value{StringValue: x, ForceSendFields: []string{"StringValue"}}, nil
	case bool:
		return fs.Value{BooleanValue: x, ForceSendFields: []string{"BooleanValue"}}, nil
	case int64:
		return fs.Value{IntegerValue: x, ForceSendFields: []string{"IntegerValue"}}, nil
	case int:
		return fs.Value{IntegerValue: int64(x), ForceSendFields: []string{"IntegerValue"}}, nil
	case float64:
		return fs.Value{DoubleValue: x, ForceSendFields: []string{"DoubleValue"}}, nil
	case time.Time:
		return fs.Value{TimestampValue: x.UTC().Format(time.RFC3339Nano)}, nil
	default:
		return fs.Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// decodeFields maps Firestore values back onto the primitive document
// types. A decoded Value does not say which member was set when it holds a
// zero, so known fields are read by their declared kind and unknown fields
// by whichever member is non-zero. Nested values are dropped.
func decodeFields(fields map[string]fs.Value, kinds map[string]remote.FieldKind) remote.Document {
	doc := make(remote.Document, len(fields))
	for k, v := range fields {
		if v.NullValue != "" {
			doc[k] = nil
			continue
		}
		kind, ok := kinds[k]
		if !ok {
			kind = inferKind(v)
		}
		switch kind {
		case remote.KindString:
			doc[k] = v.StringValue
		case remote.KindBool:
			doc[k] = v.BooleanValue
		case remote.KindInteger:
			// Other clients may have written a whole number as a double.
			if v.DoubleValue != 0 {
				doc[k] = v.DoubleValue
			} else {
				doc[k] = v.IntegerValue
			}
		case remote.KindDouble:
			if v.IntegerValue != 0 {
				doc[k] = v.IntegerValue
			} else {
				doc[k] = v.DoubleValue
			}
		case remote.KindTimestamp:
			if t, err := time.Parse(time.RFC3339Nano, v.TimestampValue); err == nil {
				doc[k] = t
			}
		}
	}
	return doc
}

func inferKind(v fs.Value) remote.FieldKind {
	switch {
	case v.StringValue != "":
		return remote.KindString
	case v.BooleanValue:
		return remote.KindBool
	case v.IntegerValue != 0:
		return remote.KindInteger
	case v.DoubleValue != 0:
		return remote.KindDouble
	case v.TimestampValue != "":
		return remote.KindTimestamp
	default:
		return 0
	}
}
