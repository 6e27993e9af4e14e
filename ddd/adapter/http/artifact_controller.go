package http

import (
	"github.com/gin-gonic/gin"

	"video-assembly-service/ddd/application/app"
	"video-assembly-service/ddd/application/cqe"
	"video-assembly-service/ddd/application/dto"
	"video-assembly-service/pkg/errno"
	"video-assembly-service/pkg/restapi"
)

// ArtifactController 产物下载
type ArtifactController struct {
	assemblyApp app.AssemblyApp
}

func NewArtifactController(assemblyApp app.AssemblyApp) *ArtifactController {
	return &ArtifactController{assemblyApp: assemblyApp}
}

// Download GET /api/v1/download/:artifact_type/:artifact_id
func (c *ArtifactController) Download(ctx *gin.Context) {
	artifact, err := c.open(ctx)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	serveArtifact(ctx, artifact)
}

// LegacyDownload GET /api/download/:artifact_type/:artifact_id
func (c *ArtifactController) LegacyDownload(ctx *gin.Context) {
	artifact, err := c.open(ctx)
	if err != nil {
		restapi.FailedDetail(ctx, err)
		return
	}
	serveArtifact(ctx, artifact)
}

func (c *ArtifactController) open(ctx *gin.Context) (*dto.ArtifactDto, error) {
	var req cqe.DownloadReq
	if err := ctx.ShouldBindUri(&req); err != nil {
		return nil, errno.ErrArtifactNotFound
	}
	return c.assemblyApp.OpenArtifact(ctx.Request.Context(), &req)
}

// serveArtifact 先写 Content-Type，ServeFile 不再按扩展名推断
func serveArtifact(ctx *gin.Context, artifact *dto.ArtifactDto) {
	ctx.Header("Content-Type", artifact.ContentType)
	ctx.FileAttachment(artifact.Path, artifact.FileName)
}
