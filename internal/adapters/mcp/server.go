package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/albertai/studyset/internal/core/domain"
	"github.com/albertai/studyset/internal/core/ports"
)

const (
	ToolGenerateStudySet = "generate_study_set"
	ToolGenerateTopic    = "generate_from_topic"
	ToolListItems        = "list_study_items"
)

// Tools exposes the generation pipeline to MCP clients. Documents are read from
// the local filesystem of the server process.
type Tools struct {
	generator ports.StudySetGenerator
	reader    ports.StudySetReader
	readFile  func(string) ([]byte, error)
}

func NewTools(generator ports.StudySetGenerator, reader ports.StudySetReader) *Tools {
	return &Tools{generator: generator, reader: reader, readFile: os.ReadFile}
}

func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))
	tools.Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool(ToolGenerateStudySet,
		mcp.WithDescription("Generate multiple-choice, true/false and flashcard items from PDF files and store them for a class"),
		mcp.WithArray("paths",
			mcp.Required(),
			mcp.Description("Absolute paths of PDF files to use as source material"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("class_id", mcp.Required(), mcp.Description("Class the generated items belong to")),
		mcp.WithNumber("exam_id", mcp.Description("Optional exam the items are tagged with")),
		mcp.WithString("topic", mcp.Description("Optional topic used as the item category")),
	), t.generateStudySet)

	s.AddTool(mcp.NewTool(ToolGenerateTopic,
		mcp.WithDescription("Generate study items for a class from a topic name alone"),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic to write questions about")),
		mcp.WithNumber("class_id", mcp.Required(), mcp.Description("Class the generated items belong to")),
		mcp.WithNumber("exam_id", mcp.Description("Optional exam the items are tagged with")),
	), t.generateFromTopic)

	s.AddTool(mcp.NewTool(ToolListItems,
		mcp.WithDescription("List stored study items of one content type for a class"),
		mcp.WithNumber("class_id", mcp.Required(), mcp.Description("Class to list")),
		mcp.WithNumber("exam_id", mcp.Description("Only items tagged with this exam")),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Enum(string(domain.ContentMultipleChoice), string(domain.ContentTrueFalse), string(domain.ContentFlashcard)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	), t.listItems)
}

func (t *Tools) generateStudySet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	classID, err := requiredID(args, "class_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	examID, err := optionalID(args, "exam_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths, err := stringList(args, "paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	docs := make([]domain.SourceDocument, 0, len(paths))
	for _, path := range paths {
		content, err := t.readFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
		}
		docs = append(docs, domain.SourceDocument{
			Filename:  filepath.Base(path),
			MediaType: mediaTypeFor(path),
			Content:   content,
		})
	}

	topic, _ := args["topic"].(string)
	result, err := t.generator.GenerateFromDocuments(ctx, domain.UploadBatch{
		Documents: docs,
		ClassID:   classID,
		ExamID:    examID,
		Topic:     topic,
	})
	return resultOrError(result, err)
}

func (t *Tools) generateFromTopic(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	classID, err := requiredID(args, "class_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	examID, err := optionalID(args, "exam_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topic, err := request.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := t.generator.GenerateFromTopic(ctx, domain.TopicRequest{
		Topic:   topic,
		ClassID: classID,
		ExamID:  examID,
	})
	return resultOrError(result, err)
}

func (t *Tools) listItems(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	classID, err := requiredID(args, "class_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	contentType, err := domain.ParseContentType(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	examID, err := optionalID(args, "exam_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var records []domain.PersistedRecord
	if examID != nil {
		records, err = t.reader.ListByExam(ctx, contentType, classID, *examID)
	} else {
		records, err = t.reader.ListByClass(ctx, contentType, classID)
	}
	return resultOrError(records, err)
}

// resultOrError reports pipeline errors as tool errors so the client model can read them.
func resultOrError(payload any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", domain.KindOf(err), err)), nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func requiredID(args map[string]any, key string) (int64, error) {
	id, ok, err := numberArg(args, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	return id, nil
}

func optionalID(args map[string]any, key string) (*int64, error) {
	id, ok, err := numberArg(args, key)
	if err != nil || !ok {
		return nil, err
	}
	return &id, nil
}

func numberArg(args map[string]any, key string) (int64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	value, ok := raw.(float64)
	if !ok || value <= 0 || value != float64(int64(value)) {
		return 0, false, fmt.Errorf("%s must be a positive integer", key)
	}
	return int64(value), true, nil
}

func stringList(args map[string]any, key string) ([]string, error) {
	raw, _ := args[key].([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%s must contain non-empty strings", key)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s must name at least one file", key)
	}
	return out, nil
}

func mediaTypeFor(path string) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
