// Remedian - Automated Compliance Remediation
// Detect. Correct. Notify.
package main

func main() {
	Execute()
}
