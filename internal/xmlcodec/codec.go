// Package xmlcodec converts between the users.xml / tasks.xml documents and
// the in-memory records.
//
// Decoding is lenient: a field that cannot be read degrades to its default
// and is reported as an Issue, it never fails the whole document. Only input
// that is not XML at all is an error.
package xmlcodec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/gurkanbulca/taskdesk/internal/models"
)

const indent = "    "

var utf8BOM = []byte("\xef\xbb\xbf")

// Issue describes a field that was replaced by its default while decoding.
type Issue struct {
	Index int    // position of the record in the document
	ID    string // record id, if it could be read
	Field string
	Raw   string
	Msg   string
}

func (i Issue) String() string {
	return fmt.Sprintf("record %d (%s) field %s: %s (%q)", i.Index, i.ID, i.Field, i.Msg, i.Raw)
}

type usersDocument struct {
	XMLName xml.Name  `xml:"users"`
	Users   []userXML `xml:"user"`
}

type userXML struct {
	ID          string `xml:"id"`
	Username    string `xml:"username"`
	Password    string `xml:"password"`
	UserType    string `xml:"userType"`
	Email       string `xml:"email"`
	FullName    string `xml:"fullName"`
	CreatedDate string `xml:"createdDate"`
}

type tasksDocument struct {
	XMLName xml.Name  `xml:"tasks"`
	Tasks   []taskXML `xml:"task"`
}

type taskXML struct {
	ID            string  `xml:"id"`
	Title         string  `xml:"title"`
	Description   string  `xml:"description"`
	AssignedTo    string  `xml:"assignedTo"`
	CreatedBy     string  `xml:"createdBy"`
	Status        string  `xml:"status"`
	Priority      string  `xml:"priority"`
	CreatedDate   string  `xml:"createdDate"`
	DueDate       string  `xml:"dueDate"`
	CompletedDate *string `xml:"completedDate"`
}

// DecodeUsers reads a users document.
func DecodeUsers(data []byte) ([]models.User, []Issue, error) {
	var doc usersDocument
	if err := xml.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &doc); err != nil {
		return nil, nil, fmt.Errorf("decode users: %w", err)
	}

	var issues []Issue
	users := make([]models.User, 0, len(doc.Users))
	for i, raw := range doc.Users {
		fr := fieldReader{index: i, id: raw.ID}

		userType := models.ParseUserType(raw.UserType)
		if !userType.Known {
			fr.report("userType", raw.UserType, "unknown user type, using "+string(userType.Value))
		}

		users = append(users, models.User{
			ID:          raw.ID,
			Username:    raw.Username,
			Password:    raw.Password,
			UserType:    userType.Value,
			Email:       raw.Email,
			FullName:    raw.FullName,
			CreatedDate: fr.millis("createdDate", raw.CreatedDate),
		})
		issues = append(issues, fr.issues...)
	}
	return users, issues, nil
}

// DecodeTasks reads a tasks document.
func DecodeTasks(data []byte) ([]models.Task, []Issue, error) {
	var doc tasksDocument
	if err := xml.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &doc); err != nil {
		return nil, nil, fmt.Errorf("decode tasks: %w", err)
	}

	var issues []Issue
	tasks := make([]models.Task, 0, len(doc.Tasks))
	for i, raw := range doc.Tasks {
		fr := fieldReader{index: i, id: raw.ID}

		status := models.ParseTaskStatus(raw.Status)
		if !status.Known {
			fr.report("status", raw.Status, "unknown status, using "+string(status.Value))
		}
		priority := models.ParseTaskPriority(raw.Priority)
		if !priority.Known && strings.TrimSpace(raw.Priority) != "" {
			fr.report("priority", raw.Priority, "unknown priority, using "+string(priority.Value))
		}

		t := models.Task{
			ID:          raw.ID,
			Title:       raw.Title,
			Description: raw.Description,
			AssignedTo:  raw.AssignedTo,
			CreatedBy:   raw.CreatedBy,
			Status:      status.Value,
			Priority:    priority.Value,
			CreatedDate: fr.millis("createdDate", raw.CreatedDate),
			DueDate:     fr.millis("dueDate", raw.DueDate),
		}
		if raw.CompletedDate != nil {
			t.CompletedDate = fr.millis("completedDate", *raw.CompletedDate)
		}
		tasks = append(tasks, t)
		issues = append(issues, fr.issues...)
	}
	return tasks, issues, nil
}

type fieldReader struct {
	index  int
	id     string
	issues []Issue
}

func (r *fieldReader) report(field, raw, msg string) {
	r.issues = append(r.issues, Issue{Index: r.index, ID: r.id, Field: field, Raw: raw, Msg: msg})
}

// millis parses an epoch-millisecond field; absent or empty means unset.
func (r *fieldReader) millis(field, raw string) int64 {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.report(field, raw, "not a number, using 0")
		return 0
	}
	return n
}

// EncodeUsers renders users as an indented UTF-8 document.
func EncodeUsers(users []models.User) ([]byte, error) {
	doc := usersDocument{Users: make([]userXML, 0, len(users))}
	for _, u := range users {
		doc.Users = append(doc.Users, userXML{
			ID:          u.ID,
			Username:    u.Username,
			Password:    u.Password,
			UserType:    string(u.UserType),
			Email:       u.Email,
			FullName:    u.FullName,
			CreatedDate: strconv.FormatInt(u.CreatedDate, 10),
		})
	}
	return marshal(doc)
}

// EncodeTasks renders tasks as an indented UTF-8 document. completedDate is
// written only when it is set.
func EncodeTasks(tasks []models.Task) ([]byte, error) {
	doc := tasksDocument{Tasks: make([]taskXML, 0, len(tasks))}
	for _, t := range tasks {
		x := taskXML{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			AssignedTo:  t.AssignedTo,
			CreatedBy:   t.CreatedBy,
			Status:      string(t.Status),
			Priority:    string(t.Priority),
			CreatedDate: strconv.FormatInt(t.CreatedDate, 10),
			DueDate:     strconv.FormatInt(t.DueDate, 10),
		}
		if t.CompletedDate > 0 {
			completed := strconv.FormatInt(t.CompletedDate, 10)
			x.CompletedDate = &completed
		}
		doc.Tasks = append(doc.Tasks, x)
	}
	return marshal(doc)
}

func marshal(doc any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n")
	enc := xml.NewEncoder(&buf)
	enc.Indent("", indent)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Encode dispatches on the record type.
func Encode[T models.Record](records []T) ([]byte, error) {
	switch rs := any(records).(type) {
	case []models.User:
		return EncodeUsers(rs)
	case []models.Task:
		return EncodeTasks(rs)
	default:
		return nil, fmt.Errorf("encode: unsupported record type %T", records)
	}
}

// Decode dispatches on the record type.
func Decode[T models.Record](data []byte) ([]T, []Issue, error) {
	var zero []T
	switch any(zero).(type) {
	case []models.User:
		users, issues, err := DecodeUsers(data)
		return any(users).([]T), issues, err
	case []models.Task:
		tasks, issues, err := DecodeTasks(data)
		return any(tasks).([]T), issues, err
	default:
		return nil, nil, fmt.Errorf("decode: unsupported record type %T", zero)
	}
}
