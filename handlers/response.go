package handlers

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"
)

// errorResponse writes the standard failure envelope
func errorResponse(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// successResponse writes the standard success envelope
func successResponse(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// readUpload reads a multipart file, enforcing maxSize
func readUpload(fileHeader *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if fileHeader.Size > maxSize {
		return nil, fmt.Errorf("file %s exceeds maximum of %d bytes", fileHeader.Filename, maxSize)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("file %s exceeds maximum of %d bytes", fileHeader.Filename, maxSize)
	}
	return data, nil
}
