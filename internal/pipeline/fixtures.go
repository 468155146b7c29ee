package pipeline

import (
	"strings"

	"go-data-pipeline/internal/model"
)

// fixtureSets are keyed by a keyword matched against the pipeline name.
// Values are strings, the same shape a delimited source produces.
var fixtureSets = []struct {
	keywords []string
	records  []model.Record
}{
	{
		keywords: []string{"employee", "payroll", "staff"},
		records: []model.Record{
			{"EmployeeID": "E001", "Name": "Alice Johnson", "Department": "Engineering", "Salary": "98000", "HireDate": "2019-03-15", "Active": "true", "Email": "alice.johnson@example.com"},
			{"EmployeeID": "E002", "Name": "Bob Smith", "Department": "Finance", "Salary": "72000", "HireDate": "2020-07-01", "Active": "true", "Email": "bob.smith@example.com"},
			{"EmployeeID": "E003", "Name": "Carol White", "Department": "Operations", "Salary": "65000", "HireDate": "2018-11-20", "Active": "false", "Email": "carol.white@example.com"},
			{"EmployeeID": "E004", "Name": "David Brown", "Department": "Engineering", "Salary": "105000", "HireDate": "2021-01-11", "Active": "true", "Email": "david.brown@example.com"},
			{"EmployeeID": "E005", "Name": "Eva Green", "Department": "Sales", "Salary": "58000", "HireDate": "2022-05-09", "Active": "true", "Email": "eva.green@example.com"},
		},
	},
	{
		keywords: []string{"sales", "order", "invoice", "revenue"},
		records: []model.Record{
			{"OrderID": "SO-1001", "Customer": "Acme Corp", "Amount": "1250.50", "OrderDate": "2024-01-05", "Region": "North", "Paid": "true"},
			{"OrderID": "SO-1002", "Customer": "Globex", "Amount": "980.00", "OrderDate": "2024-01-06", "Region": "South", "Paid": "false"},
			{"OrderID": "SO-1003", "Customer": "Initech", "Amount": "4300.75", "OrderDate": "2024-01-08", "Region": "East", "Paid": "true"},
			{"OrderID": "SO-1004", "Customer": "Umbrella", "Amount": "215.10", "OrderDate": "2024-01-09", "Region": "West", "Paid": "true"},
			{"OrderID": "SO-1005", "Customer": "Hooli", "Amount": "760.00", "OrderDate": "2024-01-12", "Region": "North", "Paid": "false"},
		},
	},
	{
		keywords: []string{"inventory", "asset", "equipment", "stock"},
		records: []model.Record{
			{"AssetID": "A-100", "Description": "Laptop", "Quantity": "25", "UnitCost": "1200", "PurchaseDate": "2023-02-14", "Location": "HQ"},
			{"AssetID": "A-101", "Description": "Monitor", "Quantity": "40", "UnitCost": "240", "PurchaseDate": "2023-03-01", "Location": "HQ"},
			{"AssetID": "A-102", "Description": "Forklift", "Quantity": "2", "UnitCost": "18500", "PurchaseDate": "2021-09-30", "Location": "Warehouse"},
			{"AssetID": "A-103", "Description": "Desk", "Quantity": "60", "UnitCost": "310", "PurchaseDate": "2022-06-17", "Location": "Branch"},
			{"AssetID": "A-104", "Description": "Router", "Quantity": "8", "UnitCost": "450", "PurchaseDate": "2024-04-02", "Location": "Datacenter"},
		},
	},
	{
		keywords: []string{"customer", "client", "crm", "contact"},
		records: []model.Record{
			{"CustomerID": "C-01", "Name": "Acme Corp", "Email": "ops@acme.example", "Phone": "555-0100", "Segment": "Enterprise", "SignupDate": "2020-02-02"},
			{"CustomerID": "C-02", "Name": "Globex", "Email": "it@globex.example", "Phone": "555-0101", "Segment": "SMB", "SignupDate": "2021-04-18"},
			{"CustomerID": "C-03", "Name": "Initech", "Email": "hello@initech.example", "Phone": "555-0102", "Segment": "SMB", "SignupDate": "2022-08-23"},
			{"CustomerID": "C-04", "Name": "Umbrella", "Email": "admin@umbrella.example", "Phone": "555-0103", "Segment": "Enterprise", "SignupDate": "2019-12-01"},
			{"CustomerID": "C-05", "Name": "Hooli", "Email": "team@hooli.example", "Phone": "555-0104", "Segment": "Startup", "SignupDate": "2023-10-10"},
		},
	},
}

var defaultFixtures = []model.Record{
	{"ID": "1", "Name": "Sample One", "Amt": "100.00", "Date": "2024-01-01", "Active": "true", "Email": "one@example.com", "Status": "active"},
	{"ID": "2", "Name": "Sample Two", "Amt": "250.50", "Date": "2024-01-02", "Active": "false", "Email": "two@example.com", "Status": "inactive"},
	{"ID": "3", "Name": "Sample Three", "Amt": "75.25", "Date": "2024-01-03", "Active": "true", "Email": "three@example.com", "Status": "active"},
	{"ID": "4", "Name": "Sample Four", "Amt": "1200.00", "Date": "2024-01-04", "Active": "true", "Email": "four@example.com", "Status": "pending"},
	{"ID": "5", "Name": "Sample Five", "Amt": "42.00", "Date": "2024-01-05", "Active": "false", "Email": "five@example.com", "Status": "active"},
}

// FixtureRecords returns deterministic sample records chosen by a keyword in
// the pipeline name. Callers receive copies.
func FixtureRecords(pipelineName string) []model.Record {
	name := strings.ToLower(pipelineName)
	set := defaultFixtures
	for _, fs := range fixtureSets {
		if containsAny(name, fs.keywords) {
			set = fs.records
			break
		}
	}

	out := make([]model.Record, len(set))
	for i, rec := range set {
		out[i] = rec.Clone()
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
