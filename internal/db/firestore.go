package db

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"pairchat/internal/config"
)

// NewFirestoreClient crea el cliente de Firestore. Sin archivo de credenciales
// se usan las Application Default Credentials.
func NewFirestoreClient(ctx context.Context, cfg *config.Config) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.FirestoreCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirestoreCredentials))
	}
	return firestore.NewClient(ctx, cfg.FirestoreProjectID, opts...)
}
