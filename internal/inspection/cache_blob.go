package inspection

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/rotisserie/eris"
)

// blobAPI is the subset of *azblob.Client the blob cache uses.
type blobAPI interface {
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
}

// BlobCacheConfig locates the snapshot blob.
type BlobCacheConfig struct {
	ConnectionString string
	AccountURL       string
	Container        string
	Name             string
}

// BlobCache stores the snapshot as a gzipped JSON blob in Azure Blob Storage.
type BlobCache struct {
	client    blobAPI
	container string
	name      string
}

// NewBlobCache creates a BlobCache. A connection string takes precedence;
// otherwise AccountURL is used with the default Azure credential chain.
func NewBlobCache(cfg BlobCacheConfig) (*BlobCache, error) {
	var (
		client *azblob.Client
		err    error
	)
	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	} else {
		var cred *azidentity.DefaultAzureCredential
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, eris.Wrap(err, "azblob: default credential")
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, nil)
	}
	if err != nil {
		return nil, eris.Wrap(err, "azblob: create client")
	}
	return &BlobCache{client: client, container: cfg.Container, name: cfg.Name}, nil
}

// Load downloads and decodes the snapshot blob, or returns ErrCacheMiss.
func (c *BlobCache) Load(ctx context.Context) (*Snapshot, error) {
	resp, err := c.client.DownloadStream(ctx, c.container, c.name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, eris.Wrapf(err, "azblob: download %s", c.name)
	}
	defer resp.Body.Close() //nolint:errcheck

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "azblob: open gzip")
	}
	defer zr.Close() //nolint:errcheck

	var s Snapshot
	if err := json.NewDecoder(zr).Decode(&s); err != nil {
		return nil, eris.Wrap(err, "azblob: decode snapshot")
	}
	return restore(s.ID, s.FetchedAt, s.Records), nil
}

// Save encodes s and overwrites the snapshot blob, creating the container
// on first use.
func (c *BlobCache) Save(ctx context.Context, s *Snapshot) error {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(s); err != nil {
		return eris.Wrap(err, "azblob: encode snapshot")
	}
	if err := zw.Close(); err != nil {
		return eris.Wrap(err, "azblob: close gzip")
	}

	if _, err := c.client.CreateContainer(ctx, c.container, nil); err != nil &&
		!bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return eris.Wrapf(err, "azblob: create container %s", c.container)
	}

	contentType, encoding := "application/json", "gzip"
	opts := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType:     &contentType,
			BlobContentEncoding: &encoding,
		},
	}
	if _, err := c.client.UploadBuffer(ctx, c.container, c.name, buf.Bytes(), opts); err != nil {
		return eris.Wrapf(err, "azblob: upload %s", c.name)
	}
	return nil
}
