package backend

import (
	"fmt"

	"subly/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	remoteType := RemoteType(appConfig.RemoteBackend)
	if !remoteType.IsValid() {
		return Config{}, fmt.Errorf("invalid remote backend in config: %s", appConfig.RemoteBackend)
	}
	transport := TransportType(appConfig.MirrorTransport)
	if !transport.IsValid() {
		return Config{}, fmt.Errorf("invalid mirror transport in config: %s", appConfig.MirrorTransport)
	}

	return Config{
		Remote:    remoteType,
		Transport: transport,

		AMQPURL:               appConfig.AMQPURL,
		AMQPExchange:          appConfig.AMQPExchange,
		AMQPMirrorQueue:       appConfig.AMQPMirrorQueue,
		AMQPNotificationQueue: appConfig.AMQPNotificationQueue,
		NotifyViaQueue:        appConfig.NotifyViaQueue,

		FirestoreProjectID:  appConfig.FirestoreProjectID,
		FirestoreDatabaseID: appConfig.FirestoreDatabaseID,

		S3Bucket:    appConfig.S3Bucket,
		S3Endpoint:  appConfig.S3Endpoint,
		S3Region:    appConfig.S3Region,
		S3AccessKey: appConfig.S3AccessKey,
		S3SecretKey: appConfig.S3SecretKey,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Remote.IsValid() {
		return fmt.Errorf("invalid remote backend: %s", c.Remote)
	}
	if !c.Transport.IsValid() {
		return fmt.Errorf("invalid mirror transport: %s", c.Transport)
	}

	switch c.Remote {
	case RemoteFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("Firestore project ID is required for firestore backend")
		}
	case RemoteObjectStore:
		if c.S3Bucket == "" {
			return fmt.Errorf("bucket is required for objectstore backend")
		}
	case RemoteNone, RemoteMemory:
		// Nothing to configure.
	}

	if c.Transport == TransportQueue && c.Remote != RemoteNone && c.AMQPURL == "" {
		return fmt.Errorf("AMQP URL is required for the queue mirror transport")
	}
	if c.NotifyViaQueue && c.AMQPURL == "" {
		return fmt.Errorf("AMQP URL is required to publish notifications")
	}
	return nil
}

// needsQueue reports whether an AMQP client must be opened.
func (c Config) needsQueue() bool {
	if c.NotifyViaQueue {
		return true
	}
	return c.Transport == TransportQueue && c.Remote != RemoteNone
}

// GetRemoteTypeStrings returns all valid remote backend names
func GetRemoteTypeStrings() []string {
	types := []RemoteType{RemoteNone, RemoteMemory, RemoteFirestore, RemoteObjectStore}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
