package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/encbench/internal/api/models"
	"github.com/smazurov/encbench/internal/codec"
)

func (s *Server) registerCodecRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-codecs",
		Method:      http.MethodGet,
		Path:        "/api/codecs",
		Summary:     "List Codecs",
		Description: "List registered encoders grouped by media type",
		Tags:        []string{"codecs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CodecsResponse, error) {
		data := models.CodecData{
			VideoCodecs: []codec.Info{},
			AudioCodecs: []codec.Info{},
		}
		if s.options.Registry != nil {
			for _, info := range s.options.Registry.List() {
				if codec.IsAudio(info.Mime) {
					data.AudioCodecs = append(data.AudioCodecs, info)
				} else {
					data.VideoCodecs = append(data.VideoCodecs, info)
				}
			}
		}
		data.Count = len(data.VideoCodecs) + len(data.AudioCodecs)
		return &models.CodecsResponse{Body: data}, nil
	})
}
