// Package images prepares and stores the pictures of custom card sets.
//
// Uploaded images are scaled to a fixed height and JPEG-compressed before
// they are written to a BlobStore under images/<game>/<unix-millis>-<index>.jpg.
// Uploads for one card set run concurrently and stop at the first failure.
package images
