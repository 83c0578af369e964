package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "user":
		handleUser(args)
	case "group":
		handleGroup(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: cohort auth <register|login|logout|who>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "register":
		registerUser(args[1:])
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleUser(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: cohort user <get|update|delete>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "get":
		getUser(args[1:])
	case "update":
		updateUser(args[1:])
	case "delete":
		deleteUser(args[1:])
	default:
		fmt.Printf("unknown user command: %s\n", subCmd)
	}
}

func handleGroup(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: cohort group <list|create|get|rename|delete|members|add-member>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "list":
		listGroups(args[1:])
	case "create":
		createGroup(args[1:])
	case "get":
		getGroup(args[1:])
	case "rename":
		renameGroup(args[1:])
	case "delete":
		deleteGroup(args[1:])
	case "members":
		listMembers(args[1:])
	case "add-member":
		addMember(args[1:])
	default:
		fmt.Printf("unknown group command: %s\n", subCmd)
	}
}

// Auth commands
func registerUser(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")
	name := fs.String("name", "", "display name (optional)")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"email":    *email,
		"password": *password,
	}
	if *name != "" {
		payload["name"] = *name
	}

	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/register", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ User registered: %s\n", *email)
		if token, ok := result["token"].(string); ok {
			saveToken(token)
		}
		if id, ok := result["userId"].(string); ok {
			fmt.Printf("  user id: %s\n", id)
		}
	} else {
		fmt.Printf("✗ Registration failed: %v\n", result)
	}
}

func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"email": *email, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s\n", *email)
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logoutUser() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", token[:20])
}

// User commands
func getUser(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: cohort user get <user-id>")
		return
	}

	result, status, err := doJSON("GET", "/users/"+args[0], nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != 200 {
		fmt.Printf("✗ Request failed: %v\n", result)
		return
	}
	fmt.Printf("id:    %v\nemail: %v\n", result["id"], result["email"])
	if name, ok := result["name"]; ok {
		fmt.Printf("name:  %v\n", name)
	}
}

func updateUser(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.String("id", "", "user id")
	email := fs.String("email", "", "new email (optional)")
	password := fs.String("password", "", "new password (optional)")
	name := fs.String("name", "", "new display name (optional)")

	fs.Parse(args)

	if *id == "" {
		fmt.Println("Error: id is required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{}
	if *email != "" {
		payload["email"] = *email
	}
	if *password != "" {
		payload["password"] = *password
	}
	if *name != "" {
		payload["name"] = *name
	}
	if len(payload) == 0 {
		fmt.Println("Error: nothing to update")
		return
	}

	result, status, err := doJSON("PATCH", "/users/"+*id, payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		fmt.Println("✓ User updated")
	} else {
		fmt.Printf("✗ Update failed: %v\n", result)
	}
}

func deleteUser(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: cohort user delete <user-id>")
		return
	}

	result, status, err := doJSON("DELETE", "/users/"+args[0], nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 204 {
		fmt.Println("✓ User deleted")
		os.Remove(tokenFile())
	} else {
		fmt.Printf("✗ Delete failed: %v\n", result)
	}
}

// Group commands
func listGroups(args []string) {
	_ = args
	req, _ := http.NewRequest("GET", getAPIURL()+"/groups", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var groups []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&groups)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED")
	for _, g := range groups {
		fmt.Fprintf(w, "%v\t%v\t%v\n", g["id"], g["name"], g["createdAt"])
	}
	w.Flush()
}

func createGroup(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "group name")

	fs.Parse(args)

	if *name == "" {
		fmt.Println("Error: name is required")
		fs.PrintDefaults()
		return
	}

	result, status, err := doJSON("POST", "/groups", map[string]string{"name": *name})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 201 {
		fmt.Printf("✓ Group created: %s\n", *name)
	} else {
		fmt.Printf("✗ Create failed: %v\n", result)
	}
}

func getGroup(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: cohort group get <group-id>")
		return
	}

	result, status, err := doJSON("GET", "/groups/"+args[0], nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != 200 {
		fmt.Printf("✗ Request failed: %v\n", result)
		return
	}
	fmt.Printf("id:      %v\nname:    %v\ncreated: %v\n", result["id"], result["name"], result["createdAt"])
}

func renameGroup(args []string) {
	fs := flag.NewFlagSet("rename", flag.ExitOnError)
	id := fs.String("id", "", "group id")
	name := fs.String("name", "", "new group name")

	fs.Parse(args)

	if *id == "" || *name == "" {
		fmt.Println("Error: id and name are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := doJSON("PATCH", "/groups/"+*id, map[string]string{"name": *name})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		fmt.Println("✓ Group renamed")
	} else {
		fmt.Printf("✗ Rename failed: %v\n", result)
	}
}

func deleteGroup(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: cohort group delete <group-id>")
		return
	}

	result, status, err := doJSON("DELETE", "/groups/"+args[0], nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 204 {
		fmt.Println("✓ Group deleted")
	} else {
		fmt.Printf("✗ Delete failed: %v\n", result)
	}
}

func listMembers(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: cohort group members <group-id>")
		return
	}

	req, _ := http.NewRequest("GET", getAPIURL()+"/groups/"+args[0]+"/members", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var members []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&members)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tADDED")
	for _, m := range members {
		fmt.Fprintf(w, "%v\t%v\n", m["userId"], m["addedAt"])
	}
	w.Flush()
}

func addMember(args []string) {
	fs := flag.NewFlagSet("add-member", flag.ExitOnError)
	group := fs.String("group", "", "group id")
	user := fs.String("user", "", "user id to add")

	fs.Parse(args)

	if *group == "" || *user == "" {
		fmt.Println("Error: group and user are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := doJSON("POST", "/groups/"+*group+"/members", map[string]string{"userId": *user})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 201 {
		fmt.Println("✓ Member added")
	} else {
		fmt.Printf("✗ Add failed: %v\n", result)
	}
}

// Helper functions
func doJSON(method, path string, payload any) (map[string]interface{}, int, error) {
	var body *bytes.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, getAPIURL()+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func getAPIURL() string {
	if url := os.Getenv("COHORT_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.cohort/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.cohort", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`Cohort CLI

Usage:
  cohort <command> [options]

Commands:
  auth   Authentication (register, login, logout, who)
  user   Account operations (get, update, delete) - owner only
  group  Group operations (list, create, get, rename, delete, members, add-member)
  help   Show this help message

Environment Variables:
  COHORT_API    API endpoint (default: http://localhost:8080/api)

Examples:
  cohort auth register -email user@example.com -password pass
  cohort auth login -email user@example.com -password pass
  cohort group create -name readers
  cohort group add-member -group <group-id> -user <user-id>
`)
}
