package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureBlobStore implements BlobStore on an Azure Storage container.
// The underlying client is safe for concurrent use.
type AzureBlobStore struct {
	client    *azblob.Client
	container string
}

// NewAzureBlobStore connects to the account described by connectionString
func NewAzureBlobStore(connectionString, container string) (*AzureBlobStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid blob connection string: %w", err)
	}
	return &AzureBlobStore{client: client, container: container}, nil
}

func (s *AzureBlobStore) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, &azblob.CreateContainerOptions{
		Access: to.Ptr(azblob.PublicAccessTypeBlob),
	})
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", s.container, err)
	}
	return nil
}

func (s *AzureBlobStore) Put(ctx context.Context, name string, body io.Reader, contentType string) error {
	_, err := s.client.UploadStream(ctx, s.container, name, body, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	})
	if err != nil {
		return fmt.Errorf("upload blob %s: %w", name, err)
	}
	return nil
}

func (s *AzureBlobStore) Properties(ctx context.Context, name string) (*BlobProperties, error) {
	resp, err := s.blobClient(name).GetProperties(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get properties of %s: %w", name, err)
	}

	props := &BlobProperties{Metadata: make(map[string]string, len(resp.Metadata))}
	if resp.ContentType != nil {
		props.ContentType = *resp.ContentType
	}
	if resp.CacheControl != nil {
		props.CacheControl = *resp.CacheControl
	}
	for k, v := range resp.Metadata {
		if v != nil {
			props.Metadata[k] = *v
		}
	}
	return props, nil
}

func (s *AzureBlobStore) SetMetadata(ctx context.Context, name string, metadata map[string]string) error {
	md := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		md[k] = to.Ptr(v)
	}
	if _, err := s.blobClient(name).SetMetadata(ctx, md, nil); err != nil {
		return fmt.Errorf("set metadata of %s: %w", name, err)
	}
	return nil
}

func (s *AzureBlobStore) SetHTTPHeaders(ctx context.Context, name string, headers BlobHTTPHeaders) error {
	_, err := s.blobClient(name).SetHTTPHeaders(ctx, blob.HTTPHeaders{
		BlobContentType:  to.Ptr(headers.ContentType),
		BlobCacheControl: to.Ptr(headers.CacheControl),
	}, nil)
	if err != nil {
		return fmt.Errorf("set HTTP headers of %s: %w", name, err)
	}
	return nil
}

func (s *AzureBlobStore) Delete(ctx context.Context, name string) error {
	if _, err := s.client.DeleteBlob(ctx, s.container, name, nil); err != nil {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

func (s *AzureBlobStore) URL(name string) string {
	return s.blobClient(name).URL()
}

func (s *AzureBlobStore) blobClient(name string) *blob.Client {
	return s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(name)
}
