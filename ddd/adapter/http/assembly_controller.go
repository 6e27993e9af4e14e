package http

import (
	"github.com/gin-gonic/gin"

	"video-assembly-service/ddd/application/app"
	"video-assembly-service/ddd/application/cqe"
	"video-assembly-service/ddd/application/dto"
	"video-assembly-service/pkg/errno"
	"video-assembly-service/pkg/restapi"
)

// AssemblyController 视频合成控制器
type AssemblyController struct {
	assemblyApp app.AssemblyApp
}

// NewAssemblyController 创建视频合成控制器
func NewAssemblyController(assemblyApp app.AssemblyApp) *AssemblyController {
	return &AssemblyController{assemblyApp: assemblyApp}
}

// Assemble 提交合成任务
func (c *AssemblyController) Assemble(ctx *gin.Context) {
	resp, err := c.assemble(ctx)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// GetStatus 查询任务状态
func (c *AssemblyController) GetStatus(ctx *gin.Context) {
	resp, err := c.status(ctx)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// ListJobs 最近的任务
func (c *AssemblyController) ListJobs(ctx *gin.Context) {
	var req cqe.ListJobsReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		restapi.Failed(ctx, errno.ErrInvalidParams.WithMessage("%v", err))
		return
	}
	resp, err := c.assemblyApp.ListJobs(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// LegacyAssemble POST /api/assemble-video，响应不带信封
func (c *AssemblyController) LegacyAssemble(ctx *gin.Context) {
	resp, err := c.assemble(ctx)
	if err != nil {
		restapi.FailedDetail(ctx, err)
		return
	}
	restapi.Raw(ctx, resp)
}

// legacyStatus 旧接口以 video_id 标识任务
type legacyStatus struct {
	*dto.JobDto
	VideoID string `json:"video_id"`
}

// LegacyStatus GET /api/video-status/:job_id
func (c *AssemblyController) LegacyStatus(ctx *gin.Context) {
	resp, err := c.status(ctx)
	if err != nil {
		restapi.FailedDetail(ctx, err)
		return
	}
	restapi.Raw(ctx, legacyStatus{JobDto: resp, VideoID: resp.JobID})
}

func (c *AssemblyController) assemble(ctx *gin.Context) (*dto.AssembleResultDto, error) {
	var req cqe.AssembleReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, errno.ErrInvalidParams.WithMessage("%v", err)
	}
	return c.assemblyApp.Assemble(ctx.Request.Context(), &req)
}

func (c *AssemblyController) status(ctx *gin.Context) (*dto.JobDto, error) {
	var req cqe.QueryJobReq
	if err := ctx.ShouldBindUri(&req); err != nil {
		return nil, errno.ErrJobNotFound
	}
	return c.assemblyApp.GetStatus(ctx.Request.Context(), req.JobID)
}
