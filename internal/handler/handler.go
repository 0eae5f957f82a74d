// Package handler holds the helpers shared by the HTTP handlers in its
// subpackages.
package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/httputil"
	"github.com/livsafe/livsafe-api/pkg/validator"
)

// BindJSON decodes and validates the body into obj. On failure it reports a
// 400 and returns false.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.Fail(c, validator.Translate(err))
		return false
	}
	return true
}

// ParamID parses the named path parameter as an object id.
func ParamID(c *gin.Context, name, resource string) (primitive.ObjectID, bool) {
	id, ok := model.ParseID(c.Param(name))
	if !ok {
		httputil.Fail(c, apperrors.Validation("invalid "+resource+" id", nil))
	}
	return id, ok
}

// QueryID parses an optional object id query parameter.
func QueryID(c *gin.Context, name string) (*primitive.ObjectID, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	id, ok := model.ParseID(raw)
	if !ok {
		httputil.Fail(c, apperrors.Validation("invalid "+name, nil))
		return nil, false
	}
	return &id, true
}

// QueryInt parses an optional integer query parameter.
func QueryInt(c *gin.Context, name string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		httputil.Fail(c, apperrors.Validation(name+" must be a number", err))
		return nil, false
	}
	return &v, true
}
