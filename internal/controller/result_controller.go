package controller

import (
	"errors"
	"net/http"
	"osian_backend/internal/model"
	"osian_backend/internal/service"
	"osian_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	ResultService *service.ResultService
}

func NewResultController(resultService *service.ResultService) *ResultController {
	return &ResultController{ResultService: resultService}
}

// SubmitResult godoc
// @Summary 提交测验答案
// @Description 客观题自动评分；含主观题的测验返回 pending
// @Tags 成绩
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body model.AttemptPayload true "作答内容"
// @Success 201 {object} model.SubmitResponse
// @Failure 400 {object} util.Response
// @Failure 401 {object} util.Response
// @Failure 403 {object} util.Response "已作答过"
// @Failure 404 {object} util.Response
// @Router /results/submit [post]
func (c *ResultController) SubmitResult(ctx *gin.Context) {
	var payload model.AttemptPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.ResultService.Submit(ctx.Request.Context(), claims.UserID, payload)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAlreadyAttempted):
			util.Forbidden(ctx, "You have already attempted this quiz.")
		case errors.Is(err, util.ErrQuizNotFound):
			util.NotFound(ctx, "Quiz not found")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	ctx.JSON(http.StatusCreated, model.SubmitResponse{Result: result.Summary()})
}

// MyResults godoc
// @Summary 我的成绩
// @Tags 成绩
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.SubmissionResult}
// @Router /results/me [get]
func (c *ResultController) MyResults(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	results, err := c.ResultService.ListForUser(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	type resultItem struct {
		model.SubmissionResult
		QuizID      string `json:"quizId"`
		TimeTaken   int    `json:"timeTaken"`
		SubmittedAt string `json:"submittedAt"`
	}
	items := make([]resultItem, 0, len(results))
	for i := range results {
		items = append(items, resultItem{
			SubmissionResult: results[i].Summary(),
			QuizID:           results[i].QuizID,
			TimeTaken:        results[i].TimeTaken,
			SubmittedAt:      results[i].SubmittedAt.Format(util.TimeFormat),
		})
	}
	util.Success(ctx, items)
}
