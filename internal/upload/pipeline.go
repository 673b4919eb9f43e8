// Package upload takes raw photo bytes, writes them to durable storage, and
// registers each stored file at the tail of its folder.
package upload

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-portfolio/internal/folder"
	"github.com/fpang/photo-portfolio/internal/photoorder"
)

// File is one uploaded file.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Photos is the part of the photo order engine the pipeline drives.
type Photos interface {
	List(ctx context.Context, f folder.Folder) ([]photoorder.Photo, error)
	Append(ctx context.Context, f folder.Folder, photos []photoorder.NewPhoto) ([]photoorder.Photo, error)
	Delete(ctx context.Context, f folder.Folder, id string) (photoorder.DeleteResult, error)
}

// Pipeline stores uploads and registers them with the order engine.
type Pipeline struct {
	photos      Photos
	storage     Storage
	maxFileSize int64
}

// NewPipeline creates a Pipeline. maxFileSize <= 0 selects DefaultMaxFileSize.
func NewPipeline(photos Photos, storage Storage, maxFileSize int64) *Pipeline {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Pipeline{photos: photos, storage: storage, maxFileSize: maxFileSize}
}

// Upload validates every file, stores them in input order, and appends them
// to the folder. Nothing is stored when any file fails validation. If a
// store fails part way, the files already written are removed again, and
// files whose records could not be appended are removed as well. With no
// files the current list is returned unchanged.
func (p *Pipeline) Upload(ctx context.Context, f folder.Folder, files []File) ([]photoorder.Photo, error) {
	if len(files) == 0 {
		return p.photos.Append(ctx, f, nil)
	}

	type checked struct {
		name, contentType string
		data              []byte
	}
	valid := make([]checked, 0, len(files))
	for _, file := range files {
		name, ct, err := validate(file, p.maxFileSize)
		if err != nil {
			return nil, err
		}
		valid = append(valid, checked{name: name, contentType: ct, data: file.Data})
	}

	var stored []Stored
	batch := make([]photoorder.NewPhoto, 0, len(valid))
	for _, v := range valid {
		s, err := p.storage.Put(ctx, f, v.name, v.contentType, v.data)
		if err != nil {
			p.discard(ctx, f, stored)
			return nil, fmt.Errorf("store %s: %w", v.name, err)
		}
		stored = append(stored, s)

		info := probe(v.name, v.data)
		batch = append(batch, photoorder.NewPhoto{
			OriginalName: v.name,
			StorageRef:   s.Ref,
			URL:          s.URL,
			FileSize:     int64(len(v.data)),
			TakenAt:      info.TakenAt,
			Width:        info.Width,
			Height:       info.Height,
		})
		log.Debug().Str("folder", f.Key).Str("ref", s.Ref).Int("bytes", len(v.data)).Msg("Photo stored")
	}

	photos, err := p.photos.Append(ctx, f, batch)
	if err != nil {
		created := 0
		var appendErr *photoorder.AppendError
		if errors.As(err, &appendErr) {
			created = appendErr.Created
		}
		p.discard(ctx, f, stored[created:])
		return nil, err
	}
	log.Info().Str("folder", f.Key).Int("count", len(batch)).Msg("Upload complete")
	return photos, nil
}

// discard removes files stored by an upload that did not complete.
func (p *Pipeline) discard(ctx context.Context, f folder.Folder, stored []Stored) {
	for _, s := range stored {
		if err := p.storage.Delete(ctx, f, path.Base(s.Ref)); err != nil {
			log.Warn().Err(err).Str("ref", s.Ref).Msg("Failed to remove stored file of an aborted upload")
		}
	}
}

// Remove deletes a photo and, once the record is gone, its stored file.
// Store failures follow the engine's best-effort delete: the current list
// is returned and the stored file is kept.
func (p *Pipeline) Remove(ctx context.Context, f folder.Folder, id string) (photoorder.DeleteResult, error) {
	var filename string
	if current, err := p.photos.List(ctx, f); err != nil {
		log.Warn().Err(err).Str("folder", f.Key).Str("id", id).Msg("Could not look up photo before delete")
	} else {
		for _, photo := range current {
			if photo.ID == id {
				filename = photo.Filename
				break
			}
		}
	}

	res, err := p.photos.Delete(ctx, f, id)
	if err != nil {
		return res, err
	}
	if res.Ignored == nil && filename != "" {
		if err := p.storage.Delete(ctx, f, filename); err != nil {
			log.Warn().Err(err).Str("folder", f.Key).Str("file", filename).Msg("Photo deleted but stored file was not removed")
		}
	}
	return res, nil
}
