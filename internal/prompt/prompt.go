// Package prompt renders the LLM prompts used for test generation. Every
// function here is pure.
package prompt

import (
	"fmt"
	"strings"

	"github.com/seanblong/testgen/pkg/models"
)

const (
	// SummaryContentLimit caps each file's content in the summary prompt.
	SummaryContentLimit = 2000
	// CodeContentLimit caps the file content in the code prompt.
	CodeContentLimit = 3000

	TruncationMarker = "... (content truncated)"
)

// System messages paired with each prompt.
const (
	SummarySystem  = "You are a test case generation assistant. Generate concise test case summaries in the exact JSON format requested."
	CodeSystem     = "You are a test case code generator. Generate complete, runnable test code in the specified framework."
	ScenarioSystem = "You are an expert software test engineer specializing in pytest. Generate complete, runnable test code without any placeholders or TODO comments."
)

const summaryExample = `[
  {"id": 1, "summary": "Test function with valid input"},
  {"id": 2, "summary": "Test function with invalid input"},
  {"id": 3, "summary": "Test edge case scenario"}
]`

const seleniumInstructions = `
Special instructions for SELENIUM:
- Use Python Selenium (selenium.webdriver) with a headless Chrome WebDriver
- Provide a pytest fixture named ` + "`driver`" + ` that sets up and tears down the WebDriver
- Use WebDriverWait and expected_conditions; avoid arbitrary sleeps
- Target realistic interactions (find elements, click, type), then assert on text or URL
- Return only executable pytest test code using Selenium
`

// Summary asks for 3-5 JSON test case summaries covering files.
func Summary(files []models.FileContent, framework string) string {
	fw := strings.ToUpper(framework)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a test case generation assistant.\n")
	fmt.Fprintf(&b, "Given the following source code, suggest potential test cases in %s.\n", fw)
	b.WriteString("Return an array of JSON objects with:\n")
	b.WriteString("- id: integer (starting from 1)\n")
	b.WriteString("- summary: short description of the test case\n\n")
	b.WriteString("Source Code:\n")

	for _, f := range files {
		fmt.Fprintf(&b, "\n--- File: %s ---\n", f.Path)
		content, truncated := truncate(f.Content, SummaryContentLimit)
		b.WriteString(content)
		if truncated {
			b.WriteString("\n" + TruncationMarker)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nGenerate 3-5 test case summaries for %s in this exact JSON format:\n", fw)
	b.WriteString(summaryExample)
	return b.String()
}

// Code asks for complete test code implementing one summary against file.
func Code(file models.FileContent, summary, framework string) string {
	fw := strings.ToUpper(framework)
	content, truncated := truncate(file.Content, CodeContentLimit)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s test case generator.\n", fw)
	b.WriteString("Given the following source code and selected test case summary, generate the complete test case code.\n\n")
	b.WriteString("Source Code:\n")
	fmt.Fprintf(&b, "--- File: %s ---\n", file.Path)
	b.WriteString(content)
	if truncated {
		b.WriteString("\n" + TruncationMarker)
	}
	b.WriteString("\n\n")
	b.WriteString("Selected Test Case Summary:\n")
	b.WriteString(summary)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Generate a complete, runnable %s test case that:\n", fw)
	b.WriteString("1. Imports necessary modules\n")
	b.WriteString("2. Sets up test fixtures if needed\n")
	b.WriteString("3. Implements the test logic\n")
	b.WriteString("4. Uses proper assertions\n")
	fmt.Fprintf(&b, "5. Follows %s best practices\n", fw)

	if strings.EqualFold(strings.TrimSpace(framework), "selenium") {
		b.WriteString(seleniumInstructions)
	}

	b.WriteString("\nReturn only the test code, no explanations.")
	return b.String()
}

// Scenario asks for a single pytest function covering scenario. The source is
// embedded in full.
func Scenario(fileName, fileContent, scenario string) string {
	var b strings.Builder
	b.WriteString("You are an expert software test engineer.\n")
	b.WriteString("I will give you a Python source file and a specific test case scenario.\n\n")
	b.WriteString("**Task:**\n")
	b.WriteString("Generate a complete **pytest** test function for the given scenario **without any placeholders or TODO comments**.\n")
	b.WriteString("The test should include:\n")
	b.WriteString("- Realistic example inputs\n")
	b.WriteString("- Expected outputs based on the provided code logic\n")
	b.WriteString("- Assertions verifying correctness\n")
	b.WriteString("- Import statements if needed\n\n")
	b.WriteString("**Rules:**\n")
	b.WriteString("- Use descriptive test function names based on the file name and scenario\n")
	b.WriteString("- Do NOT leave implementation details as TODO\n")
	b.WriteString("- Ensure the test is runnable as-is\n")
	b.WriteString("- If the function interacts with external APIs or files, mock them\n\n")
	fmt.Fprintf(&b, "**Python File Name:** `%s`\n\n", fileName)
	fmt.Fprintf(&b, "**Scenario:** %s\n\n", scenario)
	b.WriteString("**Source Code:**\n```\n")
	b.WriteString(fileContent)
	b.WriteString("\n```\n\n")
	b.WriteString("Now, generate the complete pytest test code for the above scenario.\n")
	return b.String()
}

// truncate keeps the first limit characters of s.
func truncate(s string, limit int) (string, bool) {
	r := []rune(s)
	if len(r) <= limit {
		return s, false
	}
	return string(r[:limit]), true
}
